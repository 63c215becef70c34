// Package repair classifies query-engine execution errors and, where the
// fix is mechanical, rewrites the in-memory query payload. The schema
// itself is never modified; anything that would require adding members to
// the model is explained back to the caller instead.
package repair

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/cubeguard/pkg/models"
)

var (
	// missingMeasurePattern matches the engine's "member not found" error,
	// capturing the full member reference, the entity and the measure name.
	missingMeasurePattern = regexp.MustCompile(`'([^']+)' not found for path '([^'.]+)\.([^']+)'`)

	// joinPathPattern matches the engine's join-resolution failure,
	// capturing both endpoints.
	joinPathPattern = regexp.MustCompile(`[Cc]an't find join path to join '([^']+)',\s*'([^']+)'`)
)

// genericMeasures are aggregate names whose meaning is unambiguous without
// knowing the underlying columns: they can always be rendered as a count.
var genericMeasures = map[string]bool{
	"count": true,
	"total": true,
}

// rule is one entry in the ordered classification table. Rules are tried
// top to bottom; the first match wins.
type rule struct {
	name  string
	match func(errText string) (models.Classification, bool)
}

var rules = []rule{
	{name: "missing_generic_measure", match: matchMissingMeasure(true)},
	{name: "missing_specific_measure", match: matchMissingMeasure(false)},
	{name: "unreachable_join", match: matchUnreachableJoin},
}

// Classify inspects an execution error's text and decides whether it is
// mechanically fixable, needs domain knowledge, reveals an unreachable
// join or matches nothing. The raw error text is always preserved on the
// result.
func Classify(errText string) models.Classification {
	for _, r := range rules {
		if cls, ok := r.match(errText); ok {
			cls.Rule = r.name
			cls.Raw = errText
			return cls
		}
	}
	return models.Classification{
		Kind: models.FailureUnknown,
		Raw:  errText,
	}
}

func matchMissingMeasure(generic bool) func(string) (models.Classification, bool) {
	return func(errText string) (models.Classification, bool) {
		m := missingMeasurePattern.FindStringSubmatch(errText)
		if m == nil {
			return models.Classification{}, false
		}
		entity, measure := m[2], m[3]
		if genericMeasures[strings.ToLower(measure)] != generic {
			return models.Classification{}, false
		}
		kind := models.FailureRequiresDomainKnowledge
		if generic {
			kind = models.FailureMechanicallyFixable
		}
		return models.Classification{
			Kind:    kind,
			Entity:  entity,
			Measure: measure,
		}, true
	}
}

func matchUnreachableJoin(errText string) (models.Classification, bool) {
	m := joinPathPattern.FindStringSubmatch(errText)
	if m == nil {
		return models.Classification{}, false
	}
	return models.Classification{
		Kind:       models.FailureUnreachableJoin,
		FromEntity: m[1],
		ToEntity:   m[2],
	}, true
}
