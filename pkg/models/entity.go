package models

// Cardinality classifies the multiplicity of a relationship.
type Cardinality string

const (
	CardinalityOneToOne  Cardinality = "one_to_one"
	CardinalityOneToMany Cardinality = "one_to_many"
	CardinalityManyToOne Cardinality = "many_to_one"
)

// Detection methods for relationships, ordered by trustworthiness.
const (
	DetectionMethodForeignKey    = "foreign_key"    // Explicit constraint in the source schema
	DetectionMethodNamingPattern = "naming_pattern" // Column naming convention match
	DetectionMethodInference     = "inference"      // LLM or heuristic inference
)

// DefaultConfidence returns the reference confidence score for a detection method.
// Explicit constraints are certain; everything else is a guess of varying quality.
func DefaultConfidence(method string) float64 {
	switch method {
	case DetectionMethodForeignKey:
		return 1.0
	case DetectionMethodNamingPattern:
		return 0.8
	case DetectionMethodInference:
		return 0.7
	default:
		return 0.7
	}
}

// Entity is a queryable node in the semantic graph, corresponding to one
// cube/table. Entities are immutable once the graph is built; a schema
// reload constructs a fresh set.
type Entity struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Attributes  []string `json:"attributes,omitempty"` // Dimension names, selectable/filterable
	Measures    []string `json:"measures,omitempty"`   // Aggregations declared on the entity
}

// HasMeasure reports whether the entity declares the given measure name
// (without the entity prefix).
func (e *Entity) HasMeasure(name string) bool {
	for _, m := range e.Measures {
		if m == name {
			return true
		}
	}
	return false
}

// Relationship is a directed edge between two entities. For path-finding the
// graph treats edges as undirected; direction and cardinality are retained
// for display and for downstream consumers.
type Relationship struct {
	Source          string      `json:"source"`
	Target          string      `json:"target"`
	Cardinality     Cardinality `json:"cardinality"`
	Confidence      float64     `json:"confidence"` // 0.0-1.0, see DefaultConfidence
	DetectionMethod string      `json:"detection_method,omitempty"`
}
