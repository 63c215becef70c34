package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/cubeguard/pkg/cube"
	"github.com/ekaya-inc/cubeguard/pkg/models"
)

type executeResponse struct {
	Success     bool                `json:"success"`
	Data        []map[string]any    `json:"data,omitempty"`
	Count       int                 `json:"count,omitempty"`
	Table       string              `json:"table,omitempty"`
	Repaired    bool                `json:"repaired,omitempty"`
	Explanation string              `json:"explanation,omitempty"`
	Suggestions []models.Suggestion `json:"suggestions,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type validateResponse struct {
	Validation  models.ValidationResult `json:"validation"`
	Suggestions []models.Suggestion     `json:"suggestions,omitempty"`
}

// RegisterExecuteTools adds the raw query execution and validation tools.
func RegisterExecuteTools(mcpServer *server.MCPServer, deps *Deps) {
	registerExecuteCubeQueryTool(mcpServer, deps)
	registerValidateQueryTool(mcpServer, deps)
}

func registerExecuteCubeQueryTool(mcpServer *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"execute_cube_query",
		mcp.WithDescription(`Execute a raw structured query directly.
The query is validated for join reachability first; mechanically fixable
failures (like a missing count measure) are repaired and retried once.`),
		mcp.WithObject("cube_query",
			mcp.Required(),
			mcp.Description("A valid query object with measures, dimensions, filters, etc.")),
	)

	mcpServer.AddTool(tool, executeCubeQueryHandler(deps))
}

func executeCubeQueryHandler(deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := payloadArgument(request, "cube_query")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}

		result, err := deps.Service.ExecuteWithRepair(ctx, &models.CandidateQuery{Payload: payload})
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		resp := executeResponse{
			Success:     result.Success,
			Data:        result.Rows,
			Count:       len(result.Rows),
			Repaired:    result.Repaired,
			Explanation: result.Explanation,
			Suggestions: result.Suggestions,
			Error:       result.Error,
		}
		if result.Success {
			resp.Table = cube.FormatMarkdown(result.Rows)
		}
		return marshalResult(resp)
	}
}

func registerValidateQueryTool(mcpServer *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"validate_query",
		mcp.WithDescription(`Check whether a structured query's entities can be joined, without executing it.
Returns the validation status, the join path (or the offending pair), and
alternative entities when the query is unanswerable.`),
		mcp.WithObject("cube_query",
			mcp.Required(),
			mcp.Description("The query object to validate")),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(tool, validateQueryHandler(deps))
}

func validateQueryHandler(deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := payloadArgument(request, "cube_query")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}

		validation := deps.Service.ValidateQuery(payload)
		resp := validateResponse{Validation: validation}
		if !validation.Valid() {
			resp.Suggestions = deps.Service.SuggestAlternatives(validation, "")
		}
		return marshalResult(resp)
	}
}
