package engine

import (
	"sort"
	"strings"
)

// ============================================================================
// FILTERS: Generic Dimension-Based Filtering via RecordView
// ============================================================================
// Filters compile to a matcher checked once per record. The result is a
// SubView (index list into parent) with no data copy.
// ============================================================================

// Filters define which records to include.
// Keys are dimension names. Values are allowed values.
// OR within a dimension, AND across dimensions. Empty = all.
type Filters struct {
	Dimensions map[string][]string `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// Where returns a Filters restricting dimension to the given values.
func Where(dimension string, values ...string) Filters {
	return Filters{Dimensions: map[string][]string{dimension: values}}
}

// And returns a copy of f with an extra dimension constraint.
func (f Filters) And(dimension string, values ...string) Filters {
	out := Filters{Dimensions: make(map[string][]string, len(f.Dimensions)+1)}
	for k, v := range f.Dimensions {
		out.Dimensions[k] = v
	}
	out.Dimensions[dimension] = values
	return out
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// ApplyFilters returns a view of records matching all dimension filters.
// Matching is case-insensitive. Empty filters return view unchanged.
func ApplyFilters(view RecordView, filters Filters) RecordView {
	if filters.IsEmpty() {
		return view
	}
	m := compile(filters)

	indices := make([]int, 0, view.Len())
	for i := range view.Len() {
		if m.match(view, i) {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}

// clause is one dimension constraint with its allowed values lowercased.
type clause struct {
	dim     string
	allowed map[string]struct{}
}

type matcher []clause

// compile orders clauses by dimension so evaluation does not depend on map
// iteration.
func compile(f Filters) matcher {
	m := make(matcher, 0, len(f.Dimensions))
	for dim, vals := range f.Dimensions {
		if len(vals) == 0 {
			continue
		}
		c := clause{dim: dim, allowed: make(map[string]struct{}, len(vals))}
		for _, v := range vals {
			c.allowed[strings.ToLower(v)] = struct{}{}
		}
		m = append(m, c)
	}
	sort.Slice(m, func(i, j int) bool { return m[i].dim < m[j].dim })
	return m
}

func (m matcher) match(view RecordView, i int) bool {
	for _, c := range m {
		if _, ok := c.allowed[strings.ToLower(view.Dimension(i, c.dim))]; !ok {
			return false
		}
	}
	return true
}
