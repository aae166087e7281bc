package engine

import (
	"sort"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
)

// ============================================================================
// RECORD VIEW: zero-copy data access
// ============================================================================
// The engine never owns caller data. It reads through this interface.
//
// Implementations:
//   DomainView[T]  reads typed structs via accessor functions (zero-copy)
//   SubView        is a filtered or sharded subset (indices into parent)
//   RowsView       exposes aggregate rows as records for a second pass
// ============================================================================

// RecordView provides indexed access to a dataset.
// The engine calls Dimension/Measure in tight loops; keep implementations fast.
type RecordView interface {
	Len() int
	Dimension(index int, key string) string
	// Measure reports false when the value is absent for that record.
	Measure(index int, key string) (float64, bool)
	DimensionKeys() []string
	MeasureKeys() []string
}

// Ordered is implemented by views whose dimensions have natural orderings
// (weekdays, month names, bucket labels). Dimensions without an ordinal are
// compared as strings.
type Ordered interface {
	Ordinal(key string) (bucket.Ordinal, bool)
}

func ordinalOf(view RecordView, key string) (bucket.Ordinal, bool) {
	if o, ok := view.(Ordered); ok {
		return o.Ordinal(key)
	}
	return nil, false
}

// ============================================================================
// SUB VIEW: subset of a parent (zero-copy)
// ============================================================================

// SubView is a subset of a parent RecordView.
// Holds indices into the parent, no data copy.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *SubView) Measure(i int, key string) (float64, bool) {
	if i < 0 || i >= len(v.indices) {
		return 0, false
	}
	return v.parent.Measure(v.indices[i], key)
}

func (v *SubView) DimensionKeys() []string { return v.parent.DimensionKeys() }
func (v *SubView) MeasureKeys() []string   { return v.parent.MeasureKeys() }

func (v *SubView) Ordinal(key string) (bucket.Ordinal, bool) { return ordinalOf(v.parent, key) }

// Shard returns the index-th of count contiguous slices of view.
// Shards cover the view exactly once; trailing shards may be empty.
func Shard(view RecordView, index, count int) RecordView {
	if count <= 1 {
		return view
	}
	n := view.Len()
	size := (n + count - 1) / count
	lo := index * size
	hi := lo + size
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	indices := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		indices = append(indices, i)
	}
	return newSubView(view, indices)
}

// Pick returns a view of the records at the given indices of view.
func Pick(view RecordView, indices []int) RecordView {
	return newSubView(view, indices)
}

// ============================================================================
// DOMAIN ADAPTER: zero-copy typed struct access
// ============================================================================
//
// Usage:
//
//	adapter := engine.NewDomainAdapter[Annotation]().
//	    Dimension("platform", func(a Annotation) string { return a.Platform }).
//	    Measure("time_spent_seconds", func(a Annotation) float64 { return a.TimeSpent }).
//	    OptionalMeasure("quality_score", func(a Annotation) (float64, bool) { ... })
//
//	view := adapter.Bind(records)
//	rows, _ := engine.Aggregate(view, query)
//
// ============================================================================

// DomainAdapter builds a RecordView from typed structs.
// Declare once, bind many times.
type DomainAdapter[T any] struct {
	dimOrder []string
	mesOrder []string
	dims     map[string]func(T) string
	meas     map[string]func(T) (float64, bool)
	ords     map[string]bucket.Ordinal
}

// NewDomainAdapter creates a new adapter for type T.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{
		dims: make(map[string]func(T) string),
		meas: make(map[string]func(T) (float64, bool)),
		ords: make(map[string]bucket.Ordinal),
	}
}

// Dimension registers a dimension accessor.
func (a *DomainAdapter[T]) Dimension(key string, fn func(T) string) *DomainAdapter[T] {
	if _, exists := a.dims[key]; !exists {
		a.dimOrder = append(a.dimOrder, key)
	}
	a.dims[key] = fn
	return a
}

// OrderedDimension registers a dimension accessor with its natural ordering.
func (a *DomainAdapter[T]) OrderedDimension(key string, fn func(T) string, ord bucket.Ordinal) *DomainAdapter[T] {
	a.ords[key] = ord
	return a.Dimension(key, fn)
}

// Measure registers an always-present measure accessor.
func (a *DomainAdapter[T]) Measure(key string, fn func(T) float64) *DomainAdapter[T] {
	return a.OptionalMeasure(key, func(t T) (float64, bool) { return fn(t), true })
}

// OptionalMeasure registers a measure accessor that may report absence.
func (a *DomainAdapter[T]) OptionalMeasure(key string, fn func(T) (float64, bool)) *DomainAdapter[T] {
	if _, exists := a.meas[key]; !exists {
		a.mesOrder = append(a.mesOrder, key)
	}
	a.meas[key] = fn
	return a
}

// Bind creates a RecordView from a data slice. Zero-copy: holds a reference.
func (a *DomainAdapter[T]) Bind(data []T) RecordView {
	return &DomainView[T]{
		data:     data,
		dims:     a.dims,
		meas:     a.meas,
		ords:     a.ords,
		dimKeys:  a.dimOrder,
		measKeys: a.mesOrder,
	}
}

// DomainView reads typed struct fields via registered accessor functions.
type DomainView[T any] struct {
	data     []T
	dims     map[string]func(T) string
	meas     map[string]func(T) (float64, bool)
	ords     map[string]bucket.Ordinal
	dimKeys  []string
	measKeys []string
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.data) {
		return ""
	}
	if fn, ok := v.dims[key]; ok {
		return fn(v.data[i])
	}
	return ""
}

func (v *DomainView[T]) Measure(i int, key string) (float64, bool) {
	if i < 0 || i >= len(v.data) {
		return 0, false
	}
	if fn, ok := v.meas[key]; ok {
		return fn(v.data[i])
	}
	return 0, false
}

func (v *DomainView[T]) DimensionKeys() []string { return v.dimKeys }
func (v *DomainView[T]) MeasureKeys() []string   { return v.measKeys }

func (v *DomainView[T]) Ordinal(key string) (bucket.Ordinal, bool) {
	o, ok := v.ords[key]
	return o, ok
}

// ============================================================================
// ROWS VIEW: aggregate rows as records (second aggregation pass)
// ============================================================================

// RecordsMeasure is the measure RowsView exposes for each row's record count.
const RecordsMeasure = "records"

// RowsView exposes aggregate rows as a RecordView: grouping dimensions and
// derived labels become dimensions, metric values become measures (undefined
// values are absent).
type RowsView struct {
	rows     []AggregateRow
	parent   RecordView
	ords     map[string]bucket.Ordinal
	dimKeys  []string
	measKeys []string
}

// NewRowsView wraps rows. Orderings of the grouping dimensions are inherited
// from parent, which may be nil.
func NewRowsView(rows []AggregateRow, parent RecordView) *RowsView {
	v := &RowsView{rows: rows, parent: parent, ords: make(map[string]bucket.Ordinal)}
	v.cacheKeys()
	return v
}

// WithOrdinal attaches a natural ordering for a derived label.
func (v *RowsView) WithOrdinal(key string, ord bucket.Ordinal) *RowsView {
	v.ords[key] = ord
	return v
}

func (v *RowsView) cacheKeys() {
	dimSeen := make(map[string]bool)
	mesSeen := map[string]bool{RecordsMeasure: true}
	var labels, measures []string
	for _, r := range v.rows {
		for _, d := range r.Dimensions {
			if !dimSeen[d] {
				dimSeen[d] = true
				v.dimKeys = append(v.dimKeys, d)
			}
		}
		for k := range r.Labels {
			if !dimSeen[k] {
				dimSeen[k] = true
				labels = append(labels, k)
			}
		}
		for k := range r.Values {
			if !mesSeen[k] {
				mesSeen[k] = true
				measures = append(measures, k)
			}
		}
	}
	sort.Strings(labels)
	sort.Strings(measures)
	v.dimKeys = append(v.dimKeys, labels...)
	v.measKeys = append([]string{RecordsMeasure}, measures...)
}

func (v *RowsView) Len() int { return len(v.rows) }

func (v *RowsView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.rows) {
		return ""
	}
	d, _ := v.rows[i].Dim(key)
	return d
}

func (v *RowsView) Measure(i int, key string) (float64, bool) {
	if i < 0 || i >= len(v.rows) {
		return 0, false
	}
	if key == RecordsMeasure {
		return float64(v.rows[i].Records), true
	}
	val, ok := v.rows[i].Values[key]
	if !ok || !val.Valid {
		return 0, false
	}
	return val.Float, true
}

func (v *RowsView) DimensionKeys() []string { return v.dimKeys }
func (v *RowsView) MeasureKeys() []string   { return v.measKeys }

func (v *RowsView) Ordinal(key string) (bucket.Ordinal, bool) {
	if o, ok := v.ords[key]; ok {
		return o, true
	}
	if v.parent != nil {
		return ordinalOf(v.parent, key)
	}
	return nil, false
}
