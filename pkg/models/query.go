package models

import "strings"

// Filter is a single WHERE-style condition in a query payload.
type Filter struct {
	Member   string   `json:"member"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

// TimeDimension is a time-bucketed dimension with an optional date range.
type TimeDimension struct {
	Dimension   string   `json:"dimension"`
	Granularity string   `json:"granularity,omitempty"`
	DateRange   []string `json:"dateRange,omitempty"`
}

// QueryPayload is the structured analytical query sent to the semantic
// layer. Members are referenced as "Entity.field".
type QueryPayload struct {
	Dimensions     []string          `json:"dimensions,omitempty"`
	Measures       []string          `json:"measures,omitempty"`
	Filters        []Filter          `json:"filters,omitempty"`
	TimeDimensions []TimeDimension   `json:"timeDimensions,omitempty"`
	Order          map[string]string `json:"order,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
}

// Clone returns a deep copy so a repair can rewrite the payload without
// touching the original.
func (p *QueryPayload) Clone() *QueryPayload {
	if p == nil {
		return nil
	}
	cp := &QueryPayload{
		Dimensions: append([]string(nil), p.Dimensions...),
		Measures:   append([]string(nil), p.Measures...),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	for _, f := range p.Filters {
		cp.Filters = append(cp.Filters, Filter{
			Member:   f.Member,
			Operator: f.Operator,
			Values:   append([]string(nil), f.Values...),
		})
	}
	for _, td := range p.TimeDimensions {
		cp.TimeDimensions = append(cp.TimeDimensions, TimeDimension{
			Dimension:   td.Dimension,
			Granularity: td.Granularity,
			DateRange:   append([]string(nil), td.DateRange...),
		})
	}
	if p.Order != nil {
		cp.Order = make(map[string]string, len(p.Order))
		for k, v := range p.Order {
			cp.Order[k] = v
		}
	}
	return cp
}

// IsEmpty reports whether the payload selects nothing at all.
func (p *QueryPayload) IsEmpty() bool {
	return p == nil || (len(p.Dimensions) == 0 && len(p.Measures) == 0 && len(p.TimeDimensions) == 0)
}

// Entities returns the distinct entity names referenced by dimensions,
// measures, filters, and time dimensions, deduplicated in first-reference
// order so downstream iteration stays reproducible.
func (p *QueryPayload) Entities() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(member string) {
		entity, _, ok := strings.Cut(member, ".")
		if !ok || entity == "" {
			return
		}
		if !seen[entity] {
			seen[entity] = true
			out = append(out, entity)
		}
	}
	for _, d := range p.Dimensions {
		add(d)
	}
	for _, m := range p.Measures {
		add(m)
	}
	for _, f := range p.Filters {
		add(f.Member)
	}
	for _, td := range p.TimeDimensions {
		add(td.Dimension)
	}
	return out
}

// CandidateQuery is a not-yet-executed query produced from a natural
// language question. Ephemeral: constructed per request, never persisted.
type CandidateQuery struct {
	Question string        `json:"question,omitempty"`
	Payload  *QueryPayload `json:"payload"`
}

// Entities returns the distinct entity names the payload references.
func (q *CandidateQuery) Entities() []string {
	if q == nil {
		return nil
	}
	return q.Payload.Entities()
}
