// Package services orchestrates the question-to-answer pipeline:
// generation, path validation, execution, and repair.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/cube"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/repair"
	"github.com/ekaya-inc/cubeguard/pkg/suggest"
	"github.com/ekaya-inc/cubeguard/pkg/validator"
)

// Executor runs a structured query against the semantic layer. Engine
// rejections come back as *cube.ExecutionError; transport failures as
// plain errors.
type Executor interface {
	Load(ctx context.Context, payload *models.QueryPayload) (*cube.Result, error)
}

// QueryGenerator converts natural language into candidate queries.
type QueryGenerator interface {
	Generate(ctx context.Context, question, schemaContext string) (*models.CandidateQuery, error)
	Refine(ctx context.Context, question string, previous *models.QueryPayload, feedback, schemaContext string) (*models.CandidateQuery, error)
}

// Fixer is the LLM fallback for failures no deterministic rule covers.
type Fixer interface {
	AttemptFix(ctx context.Context, question string, failed *models.QueryPayload, errMessage, schemaContext string) models.RepairOutcome
}

// ExecutionResult is the terminal outcome of one pipeline run.
type ExecutionResult struct {
	Success bool                 `json:"success"`
	Rows    []map[string]any     `json:"rows,omitempty"`
	Query   *models.QueryPayload `json:"query,omitempty"`

	Validation models.ValidationResult `json:"validation"`

	// Repaired marks results produced by a rewritten query rather than the
	// original; Explanation then says what changed. For failures the
	// explanation says why no answer exists.
	Repaired    bool   `json:"repaired,omitempty"`
	Explanation string `json:"explanation,omitempty"`

	Suggestions []models.Suggestion `json:"suggestions,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// QueryService is the pipeline facade the API surfaces depend on.
type QueryService interface {
	// Answer runs the full pipeline: generate, validate, execute, repair.
	Answer(ctx context.Context, question string) (*ExecutionResult, error)

	// Refine reruns the pipeline with user feedback on a previous query.
	Refine(ctx context.Context, question string, previous *models.QueryPayload, feedback string) (*ExecutionResult, error)

	// GenerateQuery converts a question into a candidate query and
	// validates it, without executing.
	GenerateQuery(ctx context.Context, question string) (*models.CandidateQuery, models.ValidationResult, error)

	// ExecuteWithRepair validates and executes an already-built query,
	// repairing mechanically fixable failures with at most one retry.
	ExecuteWithRepair(ctx context.Context, query *models.CandidateQuery) (*ExecutionResult, error)

	// ValidateQuery checks join-path reachability without executing.
	ValidateQuery(payload *models.QueryPayload) models.ValidationResult

	// SuggestAlternatives proposes replacements for an invalid validation
	// result, optionally rewriting the original question.
	SuggestAlternatives(res models.ValidationResult, question string) []models.Suggestion

	// SchemaContext returns the schema rendered for LLM consumption.
	SchemaContext() string
}

type queryService struct {
	validator     *validator.PathValidator
	suggester     *suggest.Engine
	repairer      *repair.Engine
	executor      Executor
	generator     QueryGenerator // nil when no LLM is configured
	fixer         Fixer          // nil when no LLM is configured
	schemaContext string
	logger        *zap.Logger
}

// NewQueryService creates the pipeline service. generator and fixer may be
// nil; the service then rejects natural-language entry points and skips
// the LLM repair fallback.
func NewQueryService(
	pathValidator *validator.PathValidator,
	suggester *suggest.Engine,
	repairer *repair.Engine,
	executor Executor,
	generator QueryGenerator,
	fixer Fixer,
	schemaContext string,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		validator:     pathValidator,
		suggester:     suggester,
		repairer:      repairer,
		executor:      executor,
		generator:     generator,
		fixer:         fixer,
		schemaContext: schemaContext,
		logger:        logger.Named("query_service"),
	}
}

func (s *queryService) Answer(ctx context.Context, question string) (*ExecutionResult, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no LLM configured: natural language queries are unavailable")
	}

	candidate, err := s.generator.Generate(ctx, question, s.schemaContext)
	if err != nil {
		return nil, err
	}
	return s.ExecuteWithRepair(ctx, candidate)
}

func (s *queryService) Refine(ctx context.Context, question string, previous *models.QueryPayload, feedback string) (*ExecutionResult, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("no LLM configured: natural language queries are unavailable")
	}

	candidate, err := s.generator.Refine(ctx, question, previous, feedback, s.schemaContext)
	if err != nil {
		return nil, err
	}
	return s.ExecuteWithRepair(ctx, candidate)
}

func (s *queryService) GenerateQuery(ctx context.Context, question string) (*models.CandidateQuery, models.ValidationResult, error) {
	if s.generator == nil {
		return nil, models.ValidationResult{}, fmt.Errorf("no LLM configured: natural language queries are unavailable")
	}

	candidate, err := s.generator.Generate(ctx, question, s.schemaContext)
	if err != nil {
		return nil, models.ValidationResult{}, err
	}
	return candidate, s.validator.Validate(candidate), nil
}

func (s *queryService) ExecuteWithRepair(ctx context.Context, query *models.CandidateQuery) (*ExecutionResult, error) {
	if query == nil || query.Payload.IsEmpty() {
		return nil, fmt.Errorf("empty query")
	}

	requestID := uuid.New().String()
	logger := s.logger.With(zap.String("request_id", requestID))

	// Step 1: validate reachability before spending an engine round trip.
	validation := s.validator.Validate(query)
	if !validation.Valid() {
		logger.Info("query rejected by validation",
			zap.String("reason", validation.Reason),
			zap.String("from", validation.FromEntity),
			zap.String("to", validation.ToEntity))

		suggestions := s.suggester.Suggest(validation, query.Question)
		return &ExecutionResult{
			Validation:  validation,
			Suggestions: suggestions,
			Query:       query.Payload,
			Explanation: s.formatInvalid(validation, suggestions),
			Error:       validation.Message,
		}, nil
	}
	if validation.Status == models.ValidationWarning {
		logger.Warn("long join path", zap.String("message", validation.Message))
	}

	// Step 2: execute.
	result, err := s.executor.Load(ctx, query.Payload)
	if err == nil {
		return &ExecutionResult{
			Success:    true,
			Rows:       result.Rows,
			Query:      query.Payload,
			Validation: validation,
		}, nil
	}

	var execErr *cube.ExecutionError
	if !errors.As(err, &execErr) {
		// Transport or context failure: nothing to classify.
		return nil, err
	}

	// Step 3: classify and repair, retrying at most once.
	cls, outcome := s.repairer.ClassifyAndRepair(execErr.Message, query.Payload)
	logger.Info("execution failed, classified",
		zap.String("kind", string(cls.Kind)),
		zap.String("rule", cls.Rule))

	if !outcome.Repaired && cls.Kind == models.FailureUnknown && s.fixer != nil && query.Question != "" {
		outcome = s.fixer.AttemptFix(ctx, query.Question, query.Payload, execErr.Message, s.schemaContext)
	}

	if !outcome.Repaired {
		return &ExecutionResult{
			Query:       query.Payload,
			Validation:  validation,
			Explanation: outcome.Explanation,
			Suggestions: outcome.Suggestions,
			Error:       execErr.Message,
		}, nil
	}

	retryResult, retryErr := s.executor.Load(ctx, outcome.Payload)
	if retryErr == nil {
		logger.Info("repaired query succeeded", zap.String("explanation", outcome.Explanation))
		return &ExecutionResult{
			Success:     true,
			Rows:        retryResult.Rows,
			Query:       outcome.Payload,
			Validation:  validation,
			Repaired:    true,
			Explanation: outcome.Explanation,
		}, nil
	}

	// One retry only: a second failure is always explained, never looped.
	var retryExecErr *cube.ExecutionError
	if !errors.As(retryErr, &retryExecErr) {
		return nil, retryErr
	}
	logger.Warn("repaired query failed too", zap.String("error", retryExecErr.Message))
	return &ExecutionResult{
		Query:       outcome.Payload,
		Validation:  validation,
		Explanation: fmt.Sprintf("A repair was attempted (%s) but the corrected query also failed: %s", outcome.Explanation, retryExecErr.Message),
		Error:       retryExecErr.Message,
	}, nil
}

func (s *queryService) ValidateQuery(payload *models.QueryPayload) models.ValidationResult {
	return s.validator.Validate(&models.CandidateQuery{Payload: payload})
}

func (s *queryService) SuggestAlternatives(res models.ValidationResult, question string) []models.Suggestion {
	return s.suggester.Suggest(res, question)
}

func (s *queryService) SchemaContext() string {
	return s.schemaContext
}

// formatInvalid renders an invalid validation result plus suggestions as a
// plain-text message suitable for end users.
func (s *queryService) formatInvalid(res models.ValidationResult, suggestions []models.Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cannot answer this query: %s\n", res.Message)

	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for i, sug := range suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, sug.Description)
			if sug.Example != "" {
				fmt.Fprintf(&b, "   Example: %q\n", sug.Example)
			}
		}
	} else if res.FromEntity != "" {
		if related := s.suggester.RelatedEntities(res.FromEntity); len(related) > 0 {
			fmt.Fprintf(&b, "\n%s is directly related to: %s.\n", res.FromEntity, strings.Join(related, ", "))
		}
	}

	return strings.TrimSpace(b.String())
}
