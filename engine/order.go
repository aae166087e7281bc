package engine

import (
	"sort"
	"strings"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
)

// ============================================================================
// ORDERING: explicit comparator over GroupKey and metric values
// ============================================================================
// Rows are never left in map iteration order. Declared terms are applied
// first; remaining ties fall back to the full GroupKey in natural order, so
// every query has exactly one output order.
// ============================================================================

func sortRows(rows []AggregateRow, q Query, ordinals map[string]bucket.Ordinal) {
	dimIndex := make(map[string]int, len(q.Dimensions))
	for i, d := range q.Dimensions {
		dimIndex[d] = i
	}

	compareDim := func(i int, a, b string) int {
		if o, ok := ordinals[q.Dimensions[i]]; ok {
			return o.Compare(a, b)
		}
		return strings.Compare(a, b)
	}

	sort.SliceStable(rows, func(x, y int) bool {
		a, b := rows[x], rows[y]
		for _, t := range q.OrderBy {
			var c int
			if i, ok := dimIndex[t.By]; ok {
				c = compareDim(i, a.Key[i], b.Key[i])
				if t.Desc {
					c = -c
				}
			} else {
				c = compareValues(a.Values[t.By], b.Values[t.By], t.Desc)
			}
			if c != 0 {
				return c < 0
			}
		}
		for i := range q.Dimensions {
			if c := compareDim(i, a.Key[i], b.Key[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// compareValues orders defined values by direction; undefined values always sort last.
func compareValues(a, b Value, desc bool) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	c := 0
	switch {
	case a.Float < b.Float:
		c = -1
	case a.Float > b.Float:
		c = 1
	}
	if desc {
		c = -c
	}
	return c
}
