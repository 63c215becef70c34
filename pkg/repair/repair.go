package repair

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/apperrors"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
	"github.com/ekaya-inc/cubeguard/pkg/suggest"
)

// fallbackMeasure is the aggregate every entity can answer regardless of
// its modeled columns.
const fallbackMeasure = "count"

// Engine turns a classified execution failure into either a rewritten
// payload (to be executed exactly once more) or a final explanation.
type Engine struct {
	graph     *schema.Graph
	suggester *suggest.Engine
	logger    *zap.Logger
}

// New creates a repair engine. The suggester is consulted only for
// unreachable-join failures and may share the graph.
func New(graph *schema.Graph, suggester *suggest.Engine, logger *zap.Logger) *Engine {
	return &Engine{
		graph:     graph,
		suggester: suggester,
		logger:    logger.Named("repair"),
	}
}

// ClassifyAndRepair is the common entry point: classify the error text,
// then repair against the original payload.
func (e *Engine) ClassifyAndRepair(errText string, payload *models.QueryPayload) (models.Classification, models.RepairOutcome) {
	cls := Classify(errText)
	return cls, e.Repair(cls, payload)
}

// Repair produces the outcome for one classification. The input payload is
// never mutated; mechanical fixes operate on a deep copy.
func (e *Engine) Repair(cls models.Classification, payload *models.QueryPayload) models.RepairOutcome {
	switch cls.Kind {
	case models.FailureMechanicallyFixable:
		return e.repairMissingMeasure(cls, payload)
	case models.FailureRequiresDomainKnowledge:
		return e.explainDomainMeasure(cls)
	case models.FailureUnreachableJoin:
		return e.explainUnreachableJoin(cls)
	default:
		return e.explainUnknown(cls)
	}
}

// repairMissingMeasure swaps the unknown generic aggregate for the
// entity's count measure, which the engine can always satisfy.
func (e *Engine) repairMissingMeasure(cls models.Classification, payload *models.QueryPayload) models.RepairOutcome {
	if payload == nil {
		return models.RepairOutcome{
			Explanation: fmt.Sprintf("The measure '%s.%s' does not exist and no query payload was available to rewrite.", cls.Entity, cls.Measure),
		}
	}

	broken := cls.Entity + "." + cls.Measure
	replacement := cls.Entity + "." + fallbackMeasure

	fixed := payload.Clone()
	replaced := false
	for i, m := range fixed.Measures {
		if strings.EqualFold(m, broken) {
			fixed.Measures[i] = replacement
			replaced = true
		}
	}
	if !replaced {
		fixed.Measures = append(fixed.Measures, replacement)
	}
	// Order keys referencing the removed member would fail the retry too.
	for key, dir := range fixed.Order {
		if strings.EqualFold(key, broken) {
			delete(fixed.Order, key)
			fixed.Order[replacement] = dir
		}
	}

	e.logger.Info("rewrote missing measure",
		zap.String("from", broken),
		zap.String("to", replacement))

	return models.RepairOutcome{
		Repaired:    true,
		Payload:     fixed,
		Explanation: fmt.Sprintf("Replaced the missing measure '%s' with '%s'.", broken, replacement),
	}
}

// explainDomainMeasure declines to guess: a measure like revenue or
// average_rental_rate implies a specific column and aggregation that only
// someone who knows the data model can pick.
func (e *Engine) explainDomainMeasure(cls models.Classification) models.RepairOutcome {
	var b strings.Builder
	fmt.Fprintf(&b, "The measure '%s.%s' is not defined in the schema.", cls.Entity, cls.Measure)
	b.WriteString(" Defining it requires choosing a source column and an aggregation, which cannot be inferred safely from the name alone.")

	if entity, ok := e.graph.Resolve(cls.Entity); ok && len(entity.Measures) > 0 {
		fmt.Fprintf(&b, " Measures that do exist on %s: %s.", entity.Name, strings.Join(entity.Measures, ", "))
	}

	return models.RepairOutcome{Explanation: b.String()}
}

// explainUnreachableJoin reports why the engine refused a join, comparing
// the engine's verdict with the loaded schema metadata to detect drift.
func (e *Engine) explainUnreachableJoin(cls models.Classification) models.RepairOutcome {
	var b strings.Builder
	fmt.Fprintf(&b, "The query engine cannot join %s and %s.", cls.FromEntity, cls.ToEntity)

	path, err := e.graph.Path(cls.FromEntity, cls.ToEntity)
	switch {
	case err == nil:
		// The loaded metadata disagrees with the engine: drift.
		fmt.Fprintf(&b, " The loaded schema still shows a join path (%s), so the engine's model has drifted; refreshing the schema may resolve this.",
			strings.Join(path, " -> "))
	case errors.Is(err, apperrors.ErrNotFound):
		b.WriteString(" One of these entities is missing from the loaded schema; it may have been renamed or removed.")
	case errors.Is(err, apperrors.ErrNoJoinPath):
		b.WriteString(" The loaded schema agrees these entities are unrelated.")
	}

	for _, name := range []string{cls.FromEntity, cls.ToEntity} {
		if neighbors := e.suggester.RelatedEntities(name); len(neighbors) > 0 {
			fmt.Fprintf(&b, " %s is directly related to: %s.", name, strings.Join(neighbors, ", "))
		}
	}

	suggestions := e.suggester.Suggest(models.ValidationResult{
		Status:     models.ValidationInvalid,
		Reason:     models.ReasonNoJoinPath,
		FromEntity: cls.FromEntity,
		ToEntity:   cls.ToEntity,
	}, "")

	return models.RepairOutcome{
		Explanation: b.String(),
		Suggestions: suggestions,
	}
}

func (e *Engine) explainUnknown(cls models.Classification) models.RepairOutcome {
	return models.RepairOutcome{
		Explanation: fmt.Sprintf("The query failed and no automatic classification matched. Engine error: %s", cls.Raw),
	}
}
