package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/models"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
)

// testGraph mirrors a rental-store schema. Actor's only edge points into
// the film chain, so Actor cannot reach Address; Customer, Staff, and
// Store all reach Address directly.
func testGraph(t *testing.T) *schema.Graph {
	t.Helper()
	meta := &schema.Meta{
		Cubes: []schema.CubeMeta{
			{Name: "Customer", Joins: []schema.JoinMeta{{Name: "Address"}, {Name: "Store"}}},
			{Name: "Address", Joins: []schema.JoinMeta{{Name: "City"}}},
			{Name: "City", Joins: []schema.JoinMeta{{Name: "Country"}}},
			{Name: "Country"},
			{Name: "Store", Joins: []schema.JoinMeta{{Name: "Address"}, {Name: "Staff"}}},
			{Name: "Staff", Joins: []schema.JoinMeta{{Name: "Address"}}},
			{Name: "Actor", Joins: []schema.JoinMeta{{Name: "FilmActor"}}},
			{Name: "FilmActor", Joins: []schema.JoinMeta{{Name: "Film"}}},
			{Name: "Film", Joins: []schema.JoinMeta{{Name: "Inventory"}}},
			{Name: "Inventory", Joins: []schema.JoinMeta{{Name: "Store"}}},
		},
	}
	g, err := schema.Build(meta, schema.BuildOptions{}, zap.NewNop())
	require.NoError(t, err)
	return g
}

func newValidator(t *testing.T, cfg config.ValidatorConfig) *PathValidator {
	t.Helper()
	return New(testGraph(t), cfg, zap.NewNop())
}

func query(members ...string) *models.CandidateQuery {
	return &models.CandidateQuery{Payload: &models.QueryPayload{Dimensions: members}}
}

func TestValidateSingleEntityAlwaysValid(t *testing.T) {
	v := newValidator(t, config.DefaultValidatorConfig())

	tests := []struct {
		name string
		q    *models.CandidateQuery
	}{
		{"no entities", &models.CandidateQuery{Payload: &models.QueryPayload{}}},
		{"one entity", query("Customer.email")},
		{"one entity many members", &models.CandidateQuery{Payload: &models.QueryPayload{
			Dimensions: []string{"Customer.email", "Customer.first_name"},
			Measures:   []string{"Customer.count"},
			Filters:    []models.Filter{{Member: "Customer.last_name", Operator: "equals", Values: []string{"Smith"}}},
		}}},
		// A lone entity passes even when the graph has never heard of it:
		// execution surfaces the real member-level error, which the repair
		// engine can then act on.
		{"one unresolvable entity", query("Nonexistent.name")},
		{"one misspelled entity with measure", &models.CandidateQuery{Payload: &models.QueryPayload{
			Measures: []string{"Custmer.count"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.q)
			assert.Equal(t, models.ValidationValid, res.Status)
			assert.True(t, res.Valid())
		})
	}
}

func TestValidateDirectJoin(t *testing.T) {
	// Scenario: Customer and Address share a direct relationship.
	v := newValidator(t, config.DefaultValidatorConfig())

	res := v.Validate(query("Customer.email", "Address.district"))
	assert.Equal(t, models.ValidationValid, res.Status)
	assert.Empty(t, res.Message)
}

func TestValidateNoJoinPath(t *testing.T) {
	// Scenario: Actor's only edges lead into the film chain, so there is
	// no path to Address.
	v := newValidator(t, config.DefaultValidatorConfig())

	res := v.Validate(query("Actor.first_name", "Address.district"))
	assert.Equal(t, models.ValidationInvalid, res.Status)
	assert.Equal(t, models.ReasonNoJoinPath, res.Reason)
	assert.Equal(t, "Actor", res.FromEntity)
	assert.Equal(t, "Address", res.ToEntity)
	assert.Contains(t, res.Message, "No join path exists between Actor and Address")
}

func TestValidateLongPathWarning(t *testing.T) {
	// Actor-Store is 4 hops through the film chain. With a raised hop
	// ceiling the query proceeds, but the caller gets the path to surface.
	cfg := config.DefaultValidatorConfig()
	cfg.MaxJoinPathHops = 6
	v := newValidator(t, cfg)

	res := v.Validate(query("Actor.first_name", "Store.store_id"))
	assert.Equal(t, models.ValidationWarning, res.Status)
	assert.True(t, res.Valid(), "warnings still proceed to execution")
	assert.Equal(t, models.ReasonLongPath, res.Reason)
	assert.Equal(t, []string{"Actor", "FilmActor", "Film", "Inventory", "Store"}, res.Path)
	assert.Equal(t, 4, res.Hops)
	assert.Contains(t, res.Message, "Actor -> FilmActor -> Film -> Inventory -> Store")
}

func TestValidatePathTooLong(t *testing.T) {
	// Under the reference thresholds the same 4-hop join is rejected as a
	// probable semantic error.
	v := newValidator(t, config.DefaultValidatorConfig())

	res := v.Validate(query("Actor.first_name", "Store.store_id"))
	assert.Equal(t, models.ValidationInvalid, res.Status)
	assert.Equal(t, models.ReasonPathTooLong, res.Reason)
	assert.Equal(t, "Actor", res.FromEntity)
	assert.Equal(t, "Store", res.ToEntity)
	assert.Equal(t, 4, res.Hops)
}

func TestThresholdMonotonicity(t *testing.T) {
	// If a query is rejected as too long at maxHops = k, any config with
	// MaxJoinPathHops >= k must not reject it for that reason.
	base := newValidator(t, config.DefaultValidatorConfig())
	res := base.Validate(query("Actor.first_name", "Store.store_id"))
	require.Equal(t, models.ReasonPathTooLong, res.Reason)

	for hops := res.Hops; hops <= res.Hops+3; hops++ {
		cfg := config.DefaultValidatorConfig()
		cfg.MaxJoinPathHops = hops
		relaxed := newValidator(t, cfg)
		got := relaxed.Validate(query("Actor.first_name", "Store.store_id"))
		assert.NotEqual(t, models.ReasonPathTooLong, got.Reason,
			"must not reject at MaxJoinPathHops=%d", hops)
	}
}

func TestValidateUnknownEntity(t *testing.T) {
	v := newValidator(t, config.DefaultValidatorConfig())

	res := v.Validate(query("Rental.rental_date", "Customer.email"))
	assert.Equal(t, models.ValidationInvalid, res.Status)
	assert.Equal(t, models.ReasonUnknownEntity, res.Reason)
	assert.Equal(t, "Rental", res.ToEntity)
}

func TestValidateMidPathWarningBoundary(t *testing.T) {
	// Customer-Country is exactly 3 hops: above the short threshold,
	// within the maximum — warning, not rejection.
	v := newValidator(t, config.DefaultValidatorConfig())

	res := v.Validate(query("Customer.email", "Country.country"))
	assert.Equal(t, models.ValidationWarning, res.Status)
	assert.Equal(t, 3, res.Hops)
}

func TestValidateDeduplicatesEntities(t *testing.T) {
	// Repeated references to the same entity must not inflate the pair set.
	v := newValidator(t, config.DefaultValidatorConfig())

	q := &models.CandidateQuery{Payload: &models.QueryPayload{
		Dimensions: []string{"Customer.email", "Customer.first_name", "Address.district"},
		Filters:    []models.Filter{{Member: "Customer.last_name", Operator: "set"}},
	}}
	res := v.Validate(q)
	assert.Equal(t, models.ValidationValid, res.Status)
}
