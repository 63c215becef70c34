package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryPayloadEntities(t *testing.T) {
	p := &QueryPayload{
		Dimensions: []string{"Customer.first_name", "Address.district"},
		Measures:   []string{"Customer.count", "Orders.count"},
		Filters:    []Filter{{Member: "Store.store_id", Operator: "equals", Values: []string{"1"}}},
		TimeDimensions: []TimeDimension{
			{Dimension: "Orders.created_at", Granularity: "month"},
		},
	}

	// First-reference order, deduplicated across member kinds.
	assert.Equal(t, []string{"Customer", "Address", "Orders", "Store"}, p.Entities())
}

func TestQueryPayloadEntitiesIgnoresBareMembers(t *testing.T) {
	p := &QueryPayload{Dimensions: []string{"not_qualified", "Customer.name"}}
	assert.Equal(t, []string{"Customer"}, p.Entities())

	var nilPayload *QueryPayload
	assert.Nil(t, nilPayload.Entities())
}

func TestQueryPayloadClone(t *testing.T) {
	p := &QueryPayload{
		Measures: []string{"Orders.count"},
		Filters:  []Filter{{Member: "Orders.status", Operator: "equals", Values: []string{"open"}}},
		Order:    map[string]string{"Orders.count": "desc"},
		Limit:    50,
	}

	cp := p.Clone()
	cp.Measures[0] = "Orders.total"
	cp.Filters[0].Values[0] = "closed"
	cp.Order["Orders.count"] = "asc"

	assert.Equal(t, []string{"Orders.count"}, p.Measures)
	assert.Equal(t, "open", p.Filters[0].Values[0])
	assert.Equal(t, "desc", p.Order["Orders.count"])

	var nilPayload *QueryPayload
	assert.Nil(t, nilPayload.Clone())
}

func TestQueryPayloadIsEmpty(t *testing.T) {
	assert.True(t, (*QueryPayload)(nil).IsEmpty())
	assert.True(t, (&QueryPayload{Limit: 10}).IsEmpty())
	assert.False(t, (&QueryPayload{Measures: []string{"Orders.count"}}).IsEmpty())
	assert.False(t, (&QueryPayload{TimeDimensions: []TimeDimension{{Dimension: "Orders.created_at"}}}).IsEmpty())
}
