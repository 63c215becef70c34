package models

// FailureKind classifies a runtime execution error from the query engine.
type FailureKind string

const (
	// FailureMechanicallyFixable is a missing generic aggregate (count-style)
	// whose fix requires no domain knowledge.
	FailureMechanicallyFixable FailureKind = "mechanically_fixable"
	// FailureRequiresDomainKnowledge is a missing aggregate implying a
	// specific column or arithmetic that cannot be safely inferred.
	FailureRequiresDomainKnowledge FailureKind = "requires_domain_knowledge"
	// FailureUnreachableJoin means the engine rejected a join path the
	// pre-execution validator accepted — schema drift to surface.
	FailureUnreachableJoin FailureKind = "unreachable_join"
	// FailureUnknown matched no classification rule.
	FailureUnknown FailureKind = "unknown"
)

// Classification is the parsed result of inspecting an execution error.
type Classification struct {
	Kind FailureKind `json:"kind"`
	// Rule is the name of the classification rule that matched, for audit.
	Rule string `json:"rule,omitempty"`

	// Missing-measure details (mechanical and domain-knowledge kinds).
	Entity  string `json:"entity,omitempty"`
	Measure string `json:"measure,omitempty"`

	// Join failure endpoints (unreachable-join kind).
	FromEntity string `json:"from_entity,omitempty"`
	ToEntity   string `json:"to_entity,omitempty"`

	// Raw is the original error text, always preserved.
	Raw string `json:"raw"`
}

// RepairOutcome is the terminal state of one repair pass: either a new
// payload to execute exactly once more, or a final explanation.
type RepairOutcome struct {
	Repaired bool `json:"repaired"`
	// Payload is the rewritten query when Repaired is true.
	Payload *QueryPayload `json:"payload,omitempty"`
	// Explanation is the human-readable account of what was fixed, or of
	// why no automatic fix exists. Always set.
	Explanation string `json:"explanation"`
	// Suggestions accompany unreachable-join explanations.
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}
