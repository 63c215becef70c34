package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

// cubeSummary is one entity in the get_schema response.
type cubeSummary struct {
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Dimensions []string `json:"dimensions"`
	Measures   []string `json:"measures"`
	Joins      []string `json:"joins,omitempty"`
}

type schemaResponse struct {
	Success bool          `json:"success"`
	Cubes   []cubeSummary `json:"cubes"`
	Count   int           `json:"count"`
}

// RegisterSchemaTool adds the schema discovery tool.
func RegisterSchemaTool(mcpServer *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(`Return the available schema: entities with their measures, dimensions and join targets.
Use this to discover what data is available before writing a query.`),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(tool, getSchemaHandler(deps))
}

func getSchemaHandler(deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return marshalResult(schemaResponse{
			Success: true,
			Cubes:   summarize(deps.Meta),
			Count:   len(deps.Meta.Cubes),
		})
	}
}

func summarize(meta *schema.Meta) []cubeSummary {
	summaries := make([]cubeSummary, 0, len(meta.Cubes))
	for _, c := range meta.Cubes {
		s := cubeSummary{
			Name:       c.Name,
			Title:      c.Title,
			Dimensions: fieldNames(c.Dimensions),
			Measures:   fieldNames(c.Measures),
		}
		for _, j := range c.Joins {
			s.Joins = append(s.Joins, j.Name)
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func fieldNames(fields []schema.FieldMeta) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}
