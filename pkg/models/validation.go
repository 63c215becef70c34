package models

// ValidationStatus is the tagged outcome of path validation.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationWarning ValidationStatus = "valid_with_warning"
	ValidationInvalid ValidationStatus = "invalid"
)

// Reasons attached to invalid (or warning) validation results.
const (
	ReasonNoJoinPath    = "no_join_path"
	ReasonPathTooLong   = "path_too_long"
	ReasonUnknownEntity = "unknown_entity"
	ReasonLongPath      = "long_path" // warning, not an error
)

// ValidationResult classifies a candidate query's cross-entity reachability.
// Produced fresh per validation call and consumed immediately; never stored.
type ValidationResult struct {
	Status ValidationStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`

	// Offending (or longest) entity pair, when relevant.
	FromEntity string `json:"from_entity,omitempty"`
	ToEntity   string `json:"to_entity,omitempty"`

	// Path between FromEntity and ToEntity, when one exists.
	Path []string `json:"path,omitempty"`
	Hops int      `json:"hops,omitempty"`

	// Human-readable explanation, always set for warnings and failures.
	Message string `json:"message,omitempty"`
}

// Valid reports whether the query may proceed to execution.
func (r ValidationResult) Valid() bool {
	return r.Status != ValidationInvalid
}

// Suggestion kinds.
const (
	SuggestionAlternativeEntity = "alternative_entity"
	SuggestionSeparateQueries   = "separate_queries"
	SuggestionRelatedEntities   = "related_entities"
)

// Suggestion is one actionable alternative for an unanswerable query.
type Suggestion struct {
	Kind        string `json:"kind"`
	Entity      string `json:"entity,omitempty"`
	Description string `json:"description"`
	// Example is a templated question rewrite; empty when the caller did
	// not supply the original question.
	Example string `json:"example,omitempty"`
	// Related lists the direct neighbors of the unreachable entity so the
	// caller can say "X is directly related to: A, B" even when no full
	// substitute exists.
	Related []string `json:"related,omitempty"`
}
