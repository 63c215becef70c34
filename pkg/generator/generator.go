// Package generator converts natural language questions into structured
// query payloads using an LLM.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/llm"
	"github.com/ekaya-inc/cubeguard/pkg/models"
)

const systemPrompt = `You are an expert at converting natural language questions into Cube.js query JSON.

Cube.js Query Format:
{
  "dimensions": ["Cube.dimension_name"],
  "measures": ["Cube.measure_name"],
  "filters": [
    {
      "member": "Cube.field_name",
      "operator": "equals|contains|gte|lte|gt|lt|notEquals",
      "values": ["value"]
    }
  ],
  "order": {
    "Cube.field_name": "asc|desc"
  },
  "limit": 100
}

Important Rules:
1. Dimension and measure names use snake_case (e.g., "first_name" not "firstName")
2. Always reference fields as "CubeName.field_name"
3. Use the EXACT cube and field names from the schema
4. For aggregations (count, sum, avg), use measures if available
5. If no measures are defined, you can only query dimensions
6. Keep queries focused - don't add unnecessary fields
7. Use appropriate operators: equals, contains, gte (>=), lte (<=), gt (>), lt (<)
8. For text search, use "contains" operator
9. Default limit to 50 unless user specifies otherwise
10. NEVER include a "joins" key - joins are defined in the schema, not in queries

Response Format:
Return ONLY a valid JSON object with the query. No explanation, no markdown, just JSON.

If the question is unclear or cannot be answered with available data, return:
{
  "error": "Explanation of why query cannot be generated"
}`

// refusal is the model's structured "cannot answer" response.
type refusal struct {
	Error string `json:"error"`
}

// RefusalError means the model declined to generate a query and said why.
// The message is user-facing.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("query generation refused: %s", e.Reason)
}

// Generator produces candidate queries from questions.
type Generator struct {
	client llm.Client
	logger *zap.Logger
}

// New creates a generator backed by the given completion client.
func New(client llm.Client, logger *zap.Logger) *Generator {
	return &Generator{
		client: client,
		logger: logger.Named("generator"),
	}
}

// Generate converts a question into a candidate query. Returns a
// *RefusalError when the model reports the question cannot be answered
// with the available schema.
func (g *Generator) Generate(ctx context.Context, question, schemaContext string) (*models.CandidateQuery, error) {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n# Available Schema\n\n")
	b.WriteString(schemaContext)
	b.WriteString("\n\n# User Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\nGenerate the Cube.js query JSON:")

	payload, err := g.complete(ctx, b.String())
	if err != nil {
		return nil, err
	}
	return &models.CandidateQuery{Question: question, Payload: payload}, nil
}

// Refine regenerates a query taking user feedback on a previous attempt
// into account.
func (g *Generator) Refine(ctx context.Context, question string, previous *models.QueryPayload, feedback, schemaContext string) (*models.CandidateQuery, error) {
	previousJSON, err := json.MarshalIndent(previous, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding previous query: %w", err)
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n# Available Schema\n\n")
	b.WriteString(schemaContext)
	b.WriteString("\n\n# Original Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n# Previous Query\n\n")
	b.Write(previousJSON)
	b.WriteString("\n\n# User Feedback\n\n")
	b.WriteString(feedback)
	b.WriteString("\n\nGenerate the refined Cube.js query JSON:")

	payload, err := g.complete(ctx, b.String())
	if err != nil {
		return nil, err
	}
	return &models.CandidateQuery{Question: question, Payload: payload}, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (*models.QueryPayload, error) {
	content, err := g.client.Complete(ctx, prompt, "", 0)
	if err != nil {
		return nil, fmt.Errorf("completing query generation: %w", err)
	}

	raw, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("parsing generated query: %w", err)
	}

	var ref refusal
	if err := json.Unmarshal([]byte(raw), &ref); err == nil && ref.Error != "" {
		g.logger.Info("generation refused", zap.String("reason", ref.Error))
		return nil, &RefusalError{Reason: ref.Error}
	}

	var payload models.QueryPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parsing generated query: %w", err)
	}
	if payload.IsEmpty() {
		return nil, &RefusalError{Reason: "the model returned an empty query"}
	}

	g.logger.Debug("query generated",
		zap.Strings("dimensions", payload.Dimensions),
		zap.Strings("measures", payload.Measures))

	return &payload, nil
}
