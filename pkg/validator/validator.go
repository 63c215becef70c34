// Package validator classifies a candidate query's cross-entity
// reachability before it is allowed near the query engine.
package validator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

// PathValidator checks that every pair of entities referenced by a query is
// joinable within the configured hop thresholds. Pure: it holds no state
// beyond the immutable graph and config, so one instance serves concurrent
// requests.
type PathValidator struct {
	graph  *schema.Graph
	cfg    config.ValidatorConfig
	logger *zap.Logger
}

// New creates a path validator over an immutable schema graph.
func New(graph *schema.Graph, cfg config.ValidatorConfig, logger *zap.Logger) *PathValidator {
	return &PathValidator{
		graph:  graph,
		cfg:    cfg,
		logger: logger.Named("validator"),
	}
}

// Validate classifies the candidate query.
//
// Queries referencing zero or one distinct entity are always valid: there
// is no cross-entity join to get wrong. Otherwise every unordered pair of
// referenced entities must be connected; the maximum pairwise hop count
// decides the outcome. A connected-but-very-indirect join is rejected as a
// probable semantic error rather than executed as a valid-but-slow query.
func (v *PathValidator) Validate(q *models.CandidateQuery) models.ValidationResult {
	entities := q.Entities()

	// A single unresolvable entity still short-circuits to valid: the
	// engine's own error surface (and the repair path behind it) handles
	// misspelled members far more precisely than a name check here could.
	if len(entities) <= 1 {
		return models.ValidationResult{Status: models.ValidationValid}
	}

	for _, name := range entities {
		if _, ok := v.graph.Resolve(name); !ok {
			return models.ValidationResult{
				Status:   models.ValidationInvalid,
				Reason:   models.ReasonUnknownEntity,
				ToEntity: name,
				Message:  fmt.Sprintf("Unknown entity %q referenced by the query.", name),
			}
		}
	}

	var (
		maxHops     int
		longestPath []string
	)

	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			path := v.graph.ShortestPath(entities[i], entities[j])
			if path == nil {
				v.logger.Debug("no join path",
					zap.String("from", entities[i]),
					zap.String("to", entities[j]))
				return models.ValidationResult{
					Status:     models.ValidationInvalid,
					Reason:     models.ReasonNoJoinPath,
					FromEntity: entities[i],
					ToEntity:   entities[j],
					Message: fmt.Sprintf("No join path exists between %s and %s.",
						entities[i], entities[j]),
				}
			}
			if hops := schema.PathHops(path); hops > maxHops {
				maxHops = hops
				longestPath = path
			}
		}
	}

	if maxHops > v.cfg.MaxJoinPathHops {
		return models.ValidationResult{
			Status:     models.ValidationInvalid,
			Reason:     models.ReasonPathTooLong,
			FromEntity: longestPath[0],
			ToEntity:   longestPath[len(longestPath)-1],
			Path:       longestPath,
			Hops:       maxHops,
			Message: fmt.Sprintf(
				"Join path between %s and %s is too long to be a meaningful business query (%d hops, limit %d).",
				longestPath[0], longestPath[len(longestPath)-1], maxHops, v.cfg.MaxJoinPathHops),
		}
	}

	if maxHops > v.cfg.ShortPathHops {
		return models.ValidationResult{
			Status:     models.ValidationWarning,
			Reason:     models.ReasonLongPath,
			FromEntity: longestPath[0],
			ToEntity:   longestPath[len(longestPath)-1],
			Path:       longestPath,
			Hops:       maxHops,
			Message: fmt.Sprintf(
				"Join path between %s and %s is long (%d hops: %s). Results may be unexpected.",
				longestPath[0], longestPath[len(longestPath)-1], maxHops,
				strings.Join(longestPath, " -> ")),
		}
	}

	return models.ValidationResult{Status: models.ValidationValid}
}
