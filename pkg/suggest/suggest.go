// Package suggest converts unreachable-path validation failures into
// actionable alternative entities and question rewrites.
package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

// attributeSimilarityFloor is the Levenshtein similarity above which two
// attribute tokens count as a match even when not identical.
const attributeSimilarityFloor = 0.75

// Engine proposes semantically close alternatives for entities that cannot
// be joined to the rest of a query.
type Engine struct {
	graph  *schema.Graph
	cfg    config.ValidatorConfig
	logger *zap.Logger
}

// New creates a suggestion engine over an immutable schema graph.
func New(graph *schema.Graph, cfg config.ValidatorConfig, logger *zap.Logger) *Engine {
	return &Engine{
		graph:  graph,
		cfg:    cfg,
		logger: logger.Named("suggest"),
	}
}

// candidate is an internal ranking record.
type candidate struct {
	entity     *models.Entity
	similarity float64
	hops       int
}

// Suggest proposes up to MaxSuggestions replacement entities for the
// unreachable entity recorded in an invalid validation result. A candidate
// qualifies when it reaches the anchor entity (the part of the query that
// stays) within the configured hop ceiling. Ranking: attribute-name
// similarity to the replaced entity first, then path length to the anchor,
// then name — so two identical calls always return the identical order.
//
// originalQuestion, when supplied, produces a templated rewrite per
// alternative; when empty the Example field is omitted.
//
// After the alternatives the result always carries a separate-queries
// suggestion, and, when the replaced entity has direct neighbors, a
// related-entities suggestion listing them — so even a query with no viable
// substitute gets an actionable answer.
func (e *Engine) Suggest(res models.ValidationResult, originalQuestion string) []models.Suggestion {
	if res.Status != models.ValidationInvalid {
		return nil
	}
	if res.Reason != models.ReasonNoJoinPath && res.Reason != models.ReasonPathTooLong {
		return nil
	}

	replaced, ok := e.graph.Resolve(res.FromEntity)
	if !ok {
		return nil
	}
	anchor, ok := e.graph.Resolve(res.ToEntity)
	if !ok {
		return nil
	}

	var candidates []candidate
	for _, entity := range e.graph.Entities() {
		if entity.Name == replaced.Name || entity.Name == anchor.Name {
			continue
		}
		path := e.graph.ShortestPath(entity.Name, anchor.Name)
		if path == nil {
			continue
		}
		hops := schema.PathHops(path)
		if hops > e.cfg.MaxJoinPathHops {
			continue
		}
		candidates = append(candidates, candidate{
			entity:     entity,
			similarity: attributeSimilarity(replaced.Attributes, entity.Attributes),
			hops:       hops,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		if candidates[i].hops != candidates[j].hops {
			return candidates[i].hops < candidates[j].hops
		}
		return candidates[i].entity.Name < candidates[j].entity.Name
	})

	related := e.graph.NeighborNames(replaced.Name)

	max := e.cfg.MaxSuggestions
	if max > len(candidates) {
		max = len(candidates)
	}

	suggestions := make([]models.Suggestion, 0, max)
	for _, c := range candidates[:max] {
		s := models.Suggestion{
			Kind:   models.SuggestionAlternativeEntity,
			Entity: c.entity.Name,
			Description: fmt.Sprintf("%s can be joined with %s (%d hop path); try querying it instead of %s.",
				pluralName(c.entity.Name), anchor.Name, c.hops, replaced.Name),
			Related: related,
		}
		if originalQuestion != "" {
			s.Example = rewriteQuestion(originalQuestion, replaced.Name, c.entity.Name)
		}
		suggestions = append(suggestions, s)
	}

	suggestions = append(suggestions, models.Suggestion{
		Kind: models.SuggestionSeparateQueries,
		Description: fmt.Sprintf("Query %s and %s separately; their data cannot be combined.",
			replaced.Name, anchor.Name),
		Example: fmt.Sprintf("Try %q and %q as separate questions.",
			fmt.Sprintf("How many %s are there?", strings.ToLower(pluralName(replaced.Name))),
			fmt.Sprintf("How many %s are there?", strings.ToLower(pluralName(anchor.Name)))),
	})

	if len(related) > 0 {
		suggestions = append(suggestions, models.Suggestion{
			Kind:        models.SuggestionRelatedEntities,
			Entity:      replaced.Name,
			Description: fmt.Sprintf("%s is directly related to: %s.", replaced.Name, strings.Join(related, ", ")),
			Related:     related,
		})
	}

	e.logger.Debug("suggestions computed",
		zap.String("replaced", replaced.Name),
		zap.String("anchor", anchor.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(suggestions)))

	return suggestions
}

// RelatedEntities returns the direct neighbors of an entity, for callers
// that must present "X is directly related to: A, B" when no substitute
// exists.
func (e *Engine) RelatedEntities(name string) []string {
	return e.graph.NeighborNames(name)
}

// attributeSimilarity scores how much two attribute sets share: each
// attribute of a is matched against its closest counterpart in b, exact
// token matches counting fully and near matches (above the Levenshtein
// floor) proportionally.
func attributeSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var total float64
	for _, attrA := range a {
		best := 0.0
		for _, attrB := range b {
			if s := tokenSimilarity(attrA, attrB); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(a))
}

// tokenSimilarity compares two attribute names token-wise (split on "_"),
// so "customer_email" and "staff_email" share the "email" token.
func tokenSimilarity(a, b string) float64 {
	if strings.EqualFold(a, b) {
		return 1
	}
	tokensA := strings.Split(strings.ToLower(a), "_")
	tokensB := strings.Split(strings.ToLower(b), "_")

	best := 0.0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			s := stringSimilarity(ta, tb)
			if s >= attributeSimilarityFloor && s > best {
				best = s
			}
		}
	}
	return best
}

func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	return 1 - float64(distance)/float64(maxLen)
}

// rewriteQuestion substitutes the unreachable entity's name (singular and
// plural, any case) with the suggested one in the original question.
func rewriteQuestion(question, from, to string) string {
	fromLower := strings.ToLower(from)
	toLower := strings.ToLower(to)

	replacer := strings.NewReplacer(
		inflection.Plural(from), inflection.Plural(to),
		inflection.Plural(fromLower), inflection.Plural(toLower),
		from, to,
		fromLower, toLower,
	)
	return replacer.Replace(question)
}

func pluralName(name string) string {
	return inflection.Plural(name)
}
