package engine

import (
	"errors"
	"math"
	"strings"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
)

// ============================================================================
// ACCUMULATORS: associative, commutative partial state
// ============================================================================
// A Partial holds running (count, sum, min, max) per group per field metric.
// Partials computed over arbitrary record subsets merge into exactly the state
// a single pass would produce, so a query may be sharded freely.
// ============================================================================

// ErrIncompatiblePartial is returned when merging partials of different queries.
var ErrIncompatiblePartial = errors.New("engine: partials belong to different queries")

type acc struct {
	n   int64
	sum float64
	min float64
	max float64
}

func (a *acc) add(v float64) {
	if a.n == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.n++
	a.sum += v
}

func (a *acc) merge(b acc) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	a.n += b.n
	a.sum += b.sum
	a.min = math.Min(a.min, b.min)
	a.max = math.Max(a.max, b.max)
}

// reduce computes the raw value of a field metric.
func (a acc) reduce(kind MetricKind) Value {
	if a.n == 0 {
		return Null()
	}
	switch kind {
	case KindSum:
		return Float(a.sum)
	case KindAvg:
		return Float(a.sum / float64(a.n))
	case KindMin:
		return Float(a.min)
	case KindMax:
		return Float(a.max)
	}
	return Null()
}

type group struct {
	key     GroupKey
	records int64
	accs    []acc
}

func (g *group) clone() *group {
	c := &group{key: g.key, records: g.records, accs: make([]acc, len(g.accs))}
	copy(c.accs, g.accs)
	return c
}

// ============================================================================
// PARTIAL
// ============================================================================

// Partial is the mergeable intermediate state of one query.
type Partial struct {
	query    Query
	fields   []int // metric index for each accumulator slot
	ordinals map[string]bucket.Ordinal
	groups   map[string]*group
}

// Accumulate validates q against view and folds every record passing the
// query filters into a new Partial.
func Accumulate(view RecordView, q Query) (*Partial, error) {
	if err := Validate(view, q); err != nil {
		return nil, err
	}
	p := newPartial(view, q)

	filtered := ApplyFilters(view, q.Filters)
	key := make([]string, len(q.Dimensions))
	for i := 0; i < filtered.Len(); i++ {
		for d, dim := range q.Dimensions {
			key[d] = filtered.Dimension(i, dim)
		}
		g := p.groupFor(key)
		g.records++
		for slot, mi := range p.fields {
			if v, ok := filtered.Measure(i, q.Metrics[mi].Field); ok {
				g.accs[slot].add(v)
			}
		}
	}
	return p, nil
}

func newPartial(view RecordView, q Query) *Partial {
	p := &Partial{
		query:    q,
		ordinals: make(map[string]bucket.Ordinal),
		groups:   make(map[string]*group),
	}
	for i, m := range q.Metrics {
		if m.Kind.needsField() {
			p.fields = append(p.fields, i)
		}
	}
	for _, dim := range q.Dimensions {
		if o, ok := ordinalOf(view, dim); ok {
			p.ordinals[dim] = o
		}
	}
	return p
}

func (p *Partial) groupFor(key []string) *group {
	k := GroupKey(key).String()
	g, ok := p.groups[k]
	if !ok {
		g = &group{key: append(GroupKey(nil), key...), accs: make([]acc, len(p.fields))}
		p.groups[k] = g
	}
	return g
}

// Groups returns the number of distinct keys accumulated so far.
func (p *Partial) Groups() int { return len(p.groups) }

// Merge folds other into p. other is left untouched.
func (p *Partial) Merge(other *Partial) error {
	if other == nil {
		return nil
	}
	if p.signature() != other.signature() {
		return ErrIncompatiblePartial
	}
	for k, og := range other.groups {
		g, ok := p.groups[k]
		if !ok {
			p.groups[k] = og.clone()
			continue
		}
		g.records += og.records
		for i := range g.accs {
			g.accs[i].merge(og.accs[i])
		}
	}
	for dim, o := range other.ordinals {
		if _, ok := p.ordinals[dim]; !ok {
			p.ordinals[dim] = o
		}
	}
	return nil
}

func (p *Partial) signature() string {
	var b strings.Builder
	b.WriteString(GroupKey(p.query.Dimensions).String())
	for _, mi := range p.fields {
		m := p.query.Metrics[mi]
		b.WriteString("|")
		b.WriteString(string(m.Kind))
		b.WriteString(":")
		b.WriteString(m.Field)
	}
	return b.String()
}
