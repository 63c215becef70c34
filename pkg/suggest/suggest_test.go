package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

func testGraph(t *testing.T) *schema.Graph {
	t.Helper()
	meta := &schema.Meta{
		Cubes: []schema.CubeMeta{
			{
				Name:       "Customer",
				Dimensions: []schema.FieldMeta{{Name: "first_name"}, {Name: "last_name"}, {Name: "email"}},
				Joins:      []schema.JoinMeta{{Name: "Address"}, {Name: "Store"}},
			},
			{
				Name:       "Address",
				Dimensions: []schema.FieldMeta{{Name: "address"}, {Name: "district"}},
				Joins:      []schema.JoinMeta{{Name: "City"}},
			},
			{Name: "City", Dimensions: []schema.FieldMeta{{Name: "city"}}, Joins: []schema.JoinMeta{{Name: "Country"}}},
			{Name: "Country", Dimensions: []schema.FieldMeta{{Name: "country"}}},
			{Name: "Store", Dimensions: []schema.FieldMeta{{Name: "store_id"}}, Joins: []schema.JoinMeta{{Name: "Address"}, {Name: "Staff"}}},
			{
				Name:       "Staff",
				Dimensions: []schema.FieldMeta{{Name: "first_name"}, {Name: "last_name"}},
				Joins:      []schema.JoinMeta{{Name: "Address"}},
			},
			{
				Name:       "Actor",
				Dimensions: []schema.FieldMeta{{Name: "first_name"}, {Name: "last_name"}},
				Joins:      []schema.JoinMeta{{Name: "FilmActor"}},
			},
			{Name: "FilmActor", Joins: []schema.JoinMeta{{Name: "Film"}}},
			{Name: "Film", Dimensions: []schema.FieldMeta{{Name: "title"}}, Joins: []schema.JoinMeta{{Name: "Inventory"}}},
			{Name: "Inventory", Joins: []schema.JoinMeta{{Name: "Store"}}},
			{Name: "Payment", Dimensions: []schema.FieldMeta{{Name: "amount"}}},
		},
	}
	g, err := schema.Build(meta, schema.BuildOptions{}, zap.NewNop())
	require.NoError(t, err)
	return g
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(testGraph(t), config.DefaultValidatorConfig(), zap.NewNop())
}

func actorAddressFailure() models.ValidationResult {
	return models.ValidationResult{
		Status:     models.ValidationInvalid,
		Reason:     models.ReasonNoJoinPath,
		FromEntity: "Actor",
		ToEntity:   "Address",
	}
}

func TestSuggestAlternatives(t *testing.T) {
	e := newEngine(t)

	suggestions := e.Suggest(actorAddressFailure(), "")
	require.NotEmpty(t, suggestions)

	// Customer and Staff share Actor's name attributes and join Address
	// directly, so they outrank every structurally-closer-only candidate.
	assert.Equal(t, "Customer", suggestions[0].Entity)
	assert.Equal(t, "Staff", suggestions[1].Entity)

	require.GreaterOrEqual(t, len(suggestions), 4)
	for _, s := range suggestions[:len(suggestions)-2] {
		assert.Equal(t, models.SuggestionAlternativeEntity, s.Kind)
		assert.NotEmpty(t, s.Description)
		assert.Empty(t, s.Example, "no question supplied, no rewrite")
		assert.Equal(t, []string{"FilmActor"}, s.Related)
	}

	sep := suggestions[len(suggestions)-2]
	assert.Equal(t, models.SuggestionSeparateQueries, sep.Kind)
	assert.Contains(t, sep.Description, "Query Actor and Address separately")
	assert.Contains(t, sep.Example, "How many actors are there?")

	rel := suggestions[len(suggestions)-1]
	assert.Equal(t, models.SuggestionRelatedEntities, rel.Kind)
	assert.Equal(t, "Actor", rel.Entity)
	assert.Equal(t, []string{"FilmActor"}, rel.Related)
	assert.Contains(t, rel.Description, "Actor is directly related to: FilmActor")
}

func TestSuggestDeterminism(t *testing.T) {
	e := newEngine(t)

	first := e.Suggest(actorAddressFailure(), "How many actors are there per district?")
	for i := 0; i < 10; i++ {
		again := e.Suggest(actorAddressFailure(), "How many actors are there per district?")
		assert.Equal(t, first, again, "identical inputs must give identical ordered output")
	}
}

func TestSuggestQuestionRewrite(t *testing.T) {
	e := newEngine(t)

	suggestions := e.Suggest(actorAddressFailure(), "How many actors are there per district?")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "How many customers are there per district?", suggestions[0].Example)
}

func TestSuggestRespectsMaxSuggestions(t *testing.T) {
	cfg := config.DefaultValidatorConfig()
	cfg.MaxSuggestions = 1
	e := New(testGraph(t), cfg, zap.NewNop())

	suggestions := e.Suggest(actorAddressFailure(), "")
	var alternatives int
	for _, s := range suggestions {
		if s.Kind == models.SuggestionAlternativeEntity {
			alternatives++
		}
	}
	assert.Equal(t, 1, alternatives)
	assert.Equal(t, "Customer", suggestions[0].Entity)
}

func TestSuggestNoCandidates(t *testing.T) {
	e := newEngine(t)

	// Nothing reaches the isolated Payment entity, so no alternative can
	// improve reachability toward it. The caller still gets the
	// separate-queries advice and Customer's neighbors.
	res := models.ValidationResult{
		Status:     models.ValidationInvalid,
		Reason:     models.ReasonNoJoinPath,
		FromEntity: "Customer",
		ToEntity:   "Payment",
	}
	suggestions := e.Suggest(res, "")
	require.Len(t, suggestions, 2)
	assert.Equal(t, models.SuggestionSeparateQueries, suggestions[0].Kind)
	assert.Contains(t, suggestions[0].Description, "Query Customer and Payment separately")
	assert.Equal(t, models.SuggestionRelatedEntities, suggestions[1].Kind)
	assert.Equal(t, []string{"Address", "Store"}, suggestions[1].Related)
}

func TestSuggestIgnoresValidResults(t *testing.T) {
	e := newEngine(t)

	assert.Nil(t, e.Suggest(models.ValidationResult{Status: models.ValidationValid}, ""))
	assert.Nil(t, e.Suggest(models.ValidationResult{
		Status: models.ValidationInvalid,
		Reason: models.ReasonUnknownEntity,
	}, ""))
}

func TestRelatedEntities(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, []string{"Customer", "City", "Store", "Staff"}, e.RelatedEntities("Address"))
	assert.Empty(t, e.RelatedEntities("Payment"))
}
