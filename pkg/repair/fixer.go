package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/llm"
	"github.com/ekaya-inc/cubeguard/pkg/logging"
	"github.com/ekaya-inc/cubeguard/pkg/models"
)

// Fixer asks an LLM to repair a failed query when no deterministic rule
// applies. It either returns a corrected payload or an explanation of why
// the query cannot work.
type Fixer struct {
	client llm.Client
	logger *zap.Logger
}

// NewFixer creates an LLM-backed fixer.
func NewFixer(client llm.Client, logger *zap.Logger) *Fixer {
	return &Fixer{
		client: client,
		logger: logger.Named("fixer"),
	}
}

// AttemptFix asks the model to analyze the failure. A not-fixed outcome is
// not an error; errors are reserved for transport failures, and even those
// are folded into an explanatory outcome so callers always get something
// to show the user.
func (f *Fixer) AttemptFix(ctx context.Context, question string, failed *models.QueryPayload, errMessage, schemaContext string) models.RepairOutcome {
	prompt := buildFixPrompt(question, failed, errMessage, schemaContext)

	f.logger.Info("attempting LLM fix", zap.String("error", logging.TruncateText(errMessage)))

	content, err := f.client.Complete(ctx, prompt, "", 0)
	if err != nil {
		f.logger.Error("fix attempt failed", zap.Error(err))
		return models.RepairOutcome{
			Explanation: fmt.Sprintf("Could not analyze error: %v", err),
		}
	}

	return f.parseFixResponse(content)
}

func buildFixPrompt(question string, failed *models.QueryPayload, errMessage, schemaContext string) string {
	failedJSON, err := json.MarshalIndent(failed, "", "  ")
	if err != nil {
		failedJSON = []byte("{}")
	}

	return fmt.Sprintf(`You are a Cube.js query expert. A query failed and you need to either fix it or explain why it can't be fixed.

USER QUESTION:
%s

FAILED QUERY:
`+"```json\n%s\n```"+`

ERROR MESSAGE:
%s

AVAILABLE SCHEMA:
%s

INSTRUCTIONS:
Analyze the error and determine if you can fix the query. Common fixable issues:

1. **Wrong cube chosen**: If the error says "No join path exists between X and Y", check if the data exists in a single cube with denormalized dimensions

2. **Invalid join**: If trying to join unrelated tables, see if you can query just one cube that has all needed dimensions

3. **Missing dimension filter**: If the question asks about location/category/status, make sure you're filtering on existing dimensions rather than trying to join

4. **Wrong approach**: Sometimes a join was chosen where a filter would do, or vice versa

If you CAN fix it, respond with:
FIXED: true
QUERY: <corrected JSON query>
EXPLANATION: <brief explanation of what you fixed>

If you CANNOT fix it, respond with:
FIXED: false
EXPLANATION: <explain why this query can't work and what the user should do instead>

Respond now:`, question, failedJSON, errMessage, schemaContext)
}

// parseFixResponse reads the FIXED/QUERY/EXPLANATION protocol. A claimed
// fix with unparseable JSON is downgraded to not-fixed rather than
// propagated.
func (f *Fixer) parseFixResponse(content string) models.RepairOutcome {
	outcome := models.RepairOutcome{}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "FIXED:") {
			outcome.Repaired = strings.Contains(strings.ToLower(line), "true")
			break
		}
	}

	outcome.Explanation = extractExplanation(content)

	if !outcome.Repaired {
		return outcome
	}

	raw, err := llm.ExtractJSON(afterMarker(content, "QUERY:"))
	if err == nil {
		var payload models.QueryPayload
		err = json.Unmarshal([]byte(raw), &payload)
		if err == nil {
			outcome.Payload = &payload
			return outcome
		}
	}

	f.logger.Warn("fix claimed but query JSON invalid", zap.Error(err))
	outcome.Repaired = false
	outcome.Payload = nil
	outcome.Explanation = "The model suggested a fix but produced invalid JSON: " + outcome.Explanation
	return outcome
}

// extractExplanation collects the EXPLANATION: line and its continuation
// lines, stopping at a QUERY: block.
func extractExplanation(content string) string {
	var parts []string
	in := false
	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "EXPLANATION:"):
			in = true
			parts = append(parts, strings.TrimSpace(strings.TrimPrefix(line, "EXPLANATION:")))
		case in && strings.HasPrefix(line, "QUERY:"):
			in = false
		case in:
			parts = append(parts, strings.TrimSpace(line))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// afterMarker returns everything after the first occurrence of marker, or
// the whole string when the marker is absent.
func afterMarker(s, marker string) string {
	if i := strings.Index(s, marker); i != -1 {
		return s[i+len(marker):]
	}
	return s
}
