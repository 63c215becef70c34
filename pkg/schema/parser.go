package schema

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/cubeguard/pkg/models"
)

// Meta is the structured schema description produced by the semantic layer's
// metadata endpoint (or an equivalent YAML export). It enumerates entities
// with their fields and relationship declarations.
type Meta struct {
	Cubes []CubeMeta `json:"cubes" yaml:"cubes"`
}

// CubeMeta describes one queryable entity.
type CubeMeta struct {
	Name        string      `json:"name" yaml:"name"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Dimensions  []FieldMeta `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Measures    []FieldMeta `json:"measures,omitempty" yaml:"measures,omitempty"`
	Joins       []JoinMeta  `json:"joins,omitempty" yaml:"joins,omitempty"`
}

// FieldMeta describes one dimension or measure.
type FieldMeta struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// JoinMeta declares a relationship from the enclosing cube to Name.
type JoinMeta struct {
	Name string `json:"name" yaml:"name"`
	// Relationship is the semantic-layer cardinality keyword:
	// "belongsTo", "hasMany", or "hasOne".
	Relationship string `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	// Confidence reflects how the relationship was discovered. Absent means
	// an explicit declaration (1.0).
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	// DetectionMethod is "foreign_key", "naming_pattern", or "inference".
	DetectionMethod string `json:"detection_method,omitempty" yaml:"detection_method,omitempty"`
}

// ParseError reports a malformed or empty schema source. Fatal to graph
// construction; surfaced to the operator, never silently defaulted.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schema parse error: %s", e.Reason)
}

// BuildOptions tunes graph construction.
type BuildOptions struct {
	// MinConfidence excludes relationships below this confidence from
	// path-finding. Zero keeps everything.
	MinConfidence float64
}

// ParseYAML decodes a YAML schema export into Meta.
func ParseYAML(data []byte) (*Meta, error) {
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty schema source"}
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return &meta, nil
}

// Build constructs the entity/relationship graph from a parsed schema
// description. Fails with ParseError when the source contains no entities.
// Relationship declarations whose target entity is missing are dropped with
// a warning, not fatal; so are relationships below the confidence floor.
func Build(meta *Meta, opts BuildOptions, logger *zap.Logger) (*Graph, error) {
	if meta == nil || len(meta.Cubes) == 0 {
		return nil, &ParseError{Reason: "schema source contains no entities"}
	}

	log := logger.Named("schema")
	g := newGraph()

	for _, cube := range meta.Cubes {
		if cube.Name == "" {
			log.Warn("dropping entity with empty name")
			continue
		}
		entity := &models.Entity{
			Name:        cube.Name,
			Title:       cube.Title,
			Description: cube.Description,
		}
		for _, d := range cube.Dimensions {
			entity.Attributes = append(entity.Attributes, d.Name)
		}
		for _, m := range cube.Measures {
			entity.Measures = append(entity.Measures, m.Name)
		}
		if !g.addEntity(entity) {
			log.Warn("dropping duplicate entity", zap.String("entity", cube.Name))
		}
	}

	if len(g.order) == 0 {
		return nil, &ParseError{Reason: "schema source contains no entities"}
	}

	for _, cube := range meta.Cubes {
		if _, ok := g.Resolve(cube.Name); !ok {
			continue
		}
		for _, join := range cube.Joins {
			if _, ok := g.Resolve(join.Name); !ok {
				log.Warn("dropping relationship with unknown target",
					zap.String("source", cube.Name),
					zap.String("target", join.Name))
				continue
			}

			confidence := 1.0
			if join.Confidence != nil {
				confidence = *join.Confidence
			} else if join.DetectionMethod != "" {
				confidence = models.DefaultConfidence(join.DetectionMethod)
			}
			if confidence < opts.MinConfidence {
				log.Debug("excluding low-confidence relationship",
					zap.String("source", cube.Name),
					zap.String("target", join.Name),
					zap.Float64("confidence", confidence))
				continue
			}

			g.addRelationship(models.Relationship{
				Source:          cube.Name,
				Target:          join.Name,
				Cardinality:     cardinalityFromKeyword(join.Relationship),
				Confidence:      confidence,
				DetectionMethod: join.DetectionMethod,
			})
		}
	}

	log.Info("schema graph built",
		zap.Int("entities", len(g.order)),
		zap.Int("relationships", len(g.relationships)))

	return g, nil
}

// cardinalityFromKeyword maps the semantic layer's join keywords onto the
// cardinality enum. The keyword describes the declaring side: a cube that
// "belongsTo" another sits on the many side of a many-to-one edge.
func cardinalityFromKeyword(keyword string) models.Cardinality {
	switch keyword {
	case "hasMany":
		return models.CardinalityOneToMany
	case "hasOne":
		return models.CardinalityOneToOne
	case "belongsTo":
		return models.CardinalityManyToOne
	default:
		return models.CardinalityManyToOne
	}
}
