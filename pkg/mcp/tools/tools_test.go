package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/generator"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
	"github.com/ekaya-inc/cubeguard/pkg/services"
)

// fakeQueryService scripts the pipeline for handler tests.
type fakeQueryService struct {
	generateCandidate  *models.CandidateQuery
	generateValidation models.ValidationResult
	generateErr        error
	executeResult      *services.ExecutionResult
	executeErr         error
	validation         models.ValidationResult
	suggestions        []models.Suggestion

	executedQueries []*models.CandidateQuery
}

func (f *fakeQueryService) Answer(ctx context.Context, question string) (*services.ExecutionResult, error) {
	return f.executeResult, f.executeErr
}

func (f *fakeQueryService) Refine(ctx context.Context, question string, previous *models.QueryPayload, feedback string) (*services.ExecutionResult, error) {
	return f.executeResult, f.executeErr
}

func (f *fakeQueryService) GenerateQuery(ctx context.Context, question string) (*models.CandidateQuery, models.ValidationResult, error) {
	return f.generateCandidate, f.generateValidation, f.generateErr
}

func (f *fakeQueryService) ExecuteWithRepair(ctx context.Context, query *models.CandidateQuery) (*services.ExecutionResult, error) {
	f.executedQueries = append(f.executedQueries, query)
	return f.executeResult, f.executeErr
}

func (f *fakeQueryService) ValidateQuery(payload *models.QueryPayload) models.ValidationResult {
	return f.validation
}

func (f *fakeQueryService) SuggestAlternatives(res models.ValidationResult, question string) []models.Suggestion {
	return f.suggestions
}

func (f *fakeQueryService) SchemaContext() string { return "## Customer" }

func testDeps(svc services.QueryService) *Deps {
	return &Deps{
		Service: svc,
		Meta: &schema.Meta{Cubes: []schema.CubeMeta{
			{
				Name:       "Customer",
				Title:      "Customers",
				Dimensions: []schema.FieldMeta{{Name: "first_name"}},
				Measures:   []schema.FieldMeta{{Name: "count"}},
				Joins:      []schema.JoinMeta{{Name: "Address"}},
			},
			{Name: "Address", Dimensions: []schema.FieldMeta{{Name: "district"}}},
		}},
		Logger: zap.NewNop(),
	}
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestQueryToolExecutes(t *testing.T) {
	svc := &fakeQueryService{
		generateCandidate: &models.CandidateQuery{
			Question: "how many customers?",
			Payload:  &models.QueryPayload{Measures: []string{"Customer.count"}},
		},
		generateValidation: models.ValidationResult{Status: models.ValidationValid},
		executeResult: &services.ExecutionResult{
			Success:    true,
			Rows:       []map[string]any{{"Customer.count": float64(12)}},
			Query:      &models.QueryPayload{Measures: []string{"Customer.count"}},
			Validation: models.ValidationResult{Status: models.ValidationValid},
		},
	}

	result, err := queryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"question": "how many customers?",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	resp := decodeResult[queryResponse](t, result)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, svc.executedQueries, 1)
}

func TestQueryToolGenerateOnly(t *testing.T) {
	svc := &fakeQueryService{
		generateCandidate: &models.CandidateQuery{
			Question: "how many customers?",
			Payload:  &models.QueryPayload{Measures: []string{"Customer.count"}},
		},
		generateValidation: models.ValidationResult{Status: models.ValidationValid},
	}

	result, err := queryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"question": "how many customers?",
		"execute":  false,
	}))
	require.NoError(t, err)

	resp := decodeResult[queryResponse](t, result)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Results)
	assert.Empty(t, svc.executedQueries, "execute=false must not run the query")
	require.NotNil(t, resp.Query)
	assert.Equal(t, []string{"Customer.count"}, resp.Query.Measures)
}

func TestQueryToolRefusal(t *testing.T) {
	svc := &fakeQueryService{
		generateErr: &generator.RefusalError{Reason: "no inventory data available"},
	}

	result, err := queryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"question": "inventory levels?",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	resp := decodeResult[ErrorResponse](t, result)
	assert.Equal(t, "generation_refused", resp.Code)
	assert.Equal(t, "no inventory data available", resp.Message)
}

func TestQueryToolMissingQuestion(t *testing.T) {
	result, err := queryHandler(testDeps(&fakeQueryService{}))(context.Background(), toolRequest(map[string]any{}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	resp := decodeResult[ErrorResponse](t, result)
	assert.Equal(t, "invalid_params", resp.Code)
}

func TestRefineQueryTool(t *testing.T) {
	svc := &fakeQueryService{
		executeResult: &services.ExecutionResult{
			Success:    true,
			Rows:       []map[string]any{{"Customer.count": float64(3)}},
			Validation: models.ValidationResult{Status: models.ValidationValid},
		},
	}

	result, err := refineQueryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"question":       "how many customers?",
		"previous_query": map[string]any{"measures": []any{"Customer.count"}},
		"feedback":       "only active customers",
	}))
	require.NoError(t, err)

	resp := decodeResult[queryResponse](t, result)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
}

func TestExecuteCubeQueryTool(t *testing.T) {
	svc := &fakeQueryService{
		executeResult: &services.ExecutionResult{
			Success: true,
			Rows:    []map[string]any{{"Customer.count": float64(5)}},
		},
	}

	result, err := executeCubeQueryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"cube_query": map[string]any{"measures": []any{"Customer.count"}},
	}))
	require.NoError(t, err)

	resp := decodeResult[executeResponse](t, result)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	assert.Contains(t, resp.Table, "| Customer.count |")
	assert.Contains(t, resp.Table, "| 5 |")
	require.Len(t, svc.executedQueries, 1)
	assert.Equal(t, []string{"Customer.count"}, svc.executedQueries[0].Payload.Measures)
}

func TestExecuteCubeQueryToolBadPayload(t *testing.T) {
	result, err := executeCubeQueryHandler(testDeps(&fakeQueryService{}))(context.Background(), toolRequest(map[string]any{
		"cube_query": "not an object",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	resp := decodeResult[ErrorResponse](t, result)
	assert.Equal(t, "invalid_params", resp.Code)
}

func TestValidateQueryTool(t *testing.T) {
	svc := &fakeQueryService{
		validation: models.ValidationResult{
			Status:     models.ValidationInvalid,
			Reason:     models.ReasonNoJoinPath,
			FromEntity: "Actor",
			ToEntity:   "Address",
			Message:    "No join path exists between Actor and Address.",
		},
		suggestions: []models.Suggestion{{
			Kind:   models.SuggestionAlternativeEntity,
			Entity: "Customer",
		}},
	}

	result, err := validateQueryHandler(testDeps(svc))(context.Background(), toolRequest(map[string]any{
		"cube_query": map[string]any{"dimensions": []any{"Actor.first_name", "Address.district"}},
	}))
	require.NoError(t, err)

	resp := decodeResult[validateResponse](t, result)
	assert.Equal(t, models.ValidationInvalid, resp.Validation.Status)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Customer", resp.Suggestions[0].Entity)
}

func TestGetSchemaTool(t *testing.T) {
	result, err := getSchemaHandler(testDeps(&fakeQueryService{}))(context.Background(), toolRequest(nil))
	require.NoError(t, err)

	resp := decodeResult[schemaResponse](t, result)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Cubes, 2)
	assert.Equal(t, "Customer", resp.Cubes[0].Name)
	assert.Equal(t, []string{"count"}, resp.Cubes[0].Measures)
	assert.Equal(t, []string{"Address"}, resp.Cubes[0].Joins)
}
