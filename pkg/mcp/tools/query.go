// Package tools provides the MCP tool implementations for cubeguard.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/generator"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
	"github.com/ekaya-inc/cubeguard/pkg/services"
)

// Deps carries the shared dependencies for all cubeguard tools.
type Deps struct {
	Service services.QueryService
	Meta    *schema.Meta
	Logger  *zap.Logger
}

// queryResponse is the result shape for the query and refine_query tools.
type queryResponse struct {
	Success     bool                    `json:"success"`
	Question    string                  `json:"question"`
	Query       *models.QueryPayload    `json:"query,omitempty"`
	Results     []map[string]any        `json:"results,omitempty"`
	Count       int                     `json:"count,omitempty"`
	Validation  models.ValidationResult `json:"validation"`
	Repaired    bool                    `json:"repaired,omitempty"`
	Explanation string                  `json:"explanation,omitempty"`
	Suggestions []models.Suggestion     `json:"suggestions,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// RegisterQueryTools registers the natural-language query tools.
func RegisterQueryTools(mcpServer *server.MCPServer, deps *Deps) {
	registerQueryTool(mcpServer, deps)
	registerRefineQueryTool(mcpServer, deps)
}

func registerQueryTool(mcpServer *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"query",
		mcp.WithDescription(`Convert a natural language question to a structured analytical query and optionally execute it.
The query is validated against the schema's join graph before execution; unanswerable questions
come back with suggested alternative entities instead of results.`),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural language question (e.g. \"How many customers per state?\")")),
		mcp.WithBoolean("execute",
			mcp.Description("If true (default), execute the query and return results. If false, only generate and validate it.")),
	)

	mcpServer.AddTool(tool, queryHandler(deps))
}

func queryHandler(deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}

		execute := true
		if args, ok := request.Params.Arguments.(map[string]any); ok {
			if v, ok := args["execute"].(bool); ok {
				execute = v
			}
		}

		candidate, validation, err := deps.Service.GenerateQuery(ctx, question)
		if err != nil {
			var refusal *generator.RefusalError
			if errors.As(err, &refusal) {
				return NewErrorResult("generation_refused", refusal.Reason), nil
			}
			return nil, fmt.Errorf("generating query: %w", err)
		}

		if !execute {
			return marshalResult(queryResponse{
				Success:     validation.Valid(),
				Question:    question,
				Query:       candidate.Payload,
				Validation:  validation,
				Suggestions: deps.Service.SuggestAlternatives(validation, question),
				Error:       validation.Message,
			})
		}

		result, err := deps.Service.ExecuteWithRepair(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		return marshalResult(executionResponse(question, result))
	}
}

func registerRefineQueryTool(mcpServer *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"refine_query",
		mcp.WithDescription(`Refine a previously generated query based on feedback.
Pass the original question, the previous query JSON and how to change it
(e.g. "only show active customers").`),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The original natural language question")),
		mcp.WithObject("previous_query",
			mcp.Required(),
			mcp.Description("The structured query that was previously generated")),
		mcp.WithString("feedback",
			mcp.Required(),
			mcp.Description("How to modify the query")),
	)

	mcpServer.AddTool(tool, refineQueryHandler(deps))
}

func refineQueryHandler(deps *Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}
		feedback, err := request.RequireString("feedback")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}
		previous, err := payloadArgument(request, "previous_query")
		if err != nil {
			return NewErrorResult("invalid_params", err.Error()), nil
		}

		result, err := deps.Service.Refine(ctx, question, previous, feedback)
		if err != nil {
			var refusal *generator.RefusalError
			if errors.As(err, &refusal) {
				return NewErrorResult("generation_refused", refusal.Reason), nil
			}
			return nil, fmt.Errorf("refining query: %w", err)
		}
		return marshalResult(executionResponse(question, result))
	}
}

// executionResponse converts a pipeline result into the tool response.
func executionResponse(question string, result *services.ExecutionResult) queryResponse {
	return queryResponse{
		Success:     result.Success,
		Question:    question,
		Query:       result.Query,
		Results:     result.Rows,
		Count:       len(result.Rows),
		Validation:  result.Validation,
		Repaired:    result.Repaired,
		Explanation: result.Explanation,
		Suggestions: result.Suggestions,
		Error:       result.Error,
	}
}

// payloadArgument decodes an object argument into a query payload.
func payloadArgument(request mcp.CallToolRequest, key string) (*models.QueryPayload, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing arguments")
	}
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing required parameter: %s", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	var payload models.QueryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &payload, nil
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
