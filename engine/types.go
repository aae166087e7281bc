package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// ENGINE TYPES
// ============================================================================
// The engine is generic: it reads any dataset through RecordView and knows
// nothing about annotation records. Dimension and measure names are resolved
// against the view at query time.
// ============================================================================

// ============================================================================
// VALUE: a metric result that may be undefined
// ============================================================================

// Value is a computed metric. Valid is false when the metric is undefined
// (average of zero contributing values, ratio with a zero denominator).
type Value struct {
	Float float64
	Valid bool
}

// Null is the undefined value.
func Null() Value { return Value{} }

// Float wraps a defined value.
func Float(v float64) Value { return Value{Float: v, Valid: true} }

// MarshalJSON renders undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Null()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

func (v Value) String() string {
	if !v.Valid {
		return "null"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// ============================================================================
// GROUP KEY + AGGREGATE ROW
// ============================================================================

// GroupKey is the ordered tuple of dimension values identifying one group.
type GroupKey []string

// String encodes the key as comma-separated quoted components. Distinct
// tuples always encode differently, whatever characters the values hold.
func (k GroupKey) String() string {
	var b strings.Builder
	for i, v := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(v))
	}
	return b.String()
}

// AggregateRow is one group and its computed metric values.
type AggregateRow struct {
	Dimensions []string          `json:"dimensions"`
	Key        GroupKey          `json:"key"`
	Records    int64             `json:"records"`
	Values     map[string]Value  `json:"values"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Dim returns the value of a grouping dimension or derived label.
func (r AggregateRow) Dim(name string) (string, bool) {
	for i, d := range r.Dimensions {
		if d == name && i < len(r.Key) {
			return r.Key[i], true
		}
	}
	if l, ok := r.Labels[name]; ok {
		return l, true
	}
	return "", false
}

// Value returns a metric by name; unknown names are undefined.
func (r AggregateRow) Value(name string) Value {
	return r.Values[name]
}

// ============================================================================
// METRICS
// ============================================================================

// MetricKind names a reducer.
type MetricKind string

const (
	KindCount MetricKind = "count"
	KindSum   MetricKind = "sum"
	KindAvg   MetricKind = "avg"
	KindMin   MetricKind = "min"
	KindMax   MetricKind = "max"
	KindRatio MetricKind = "ratio_of_total"
)

func (k MetricKind) needsField() bool {
	switch k {
	case KindSum, KindAvg, KindMin, KindMax:
		return true
	}
	return false
}

// Metric is a named reducer.
//
// For ratio_of_total, Of names another (non-ratio) metric of the same query and
// Partition lists the grouping dimensions whose shared values form the
// denominator window; an empty Partition divides by the grand total.
// Scale multiplies the final value (100 for percentages); Round, when set,
// rounds it to that many decimals.
type Metric struct {
	Name      string     `yaml:"name" json:"name"`
	Kind      MetricKind `yaml:"kind" json:"kind"`
	Field     string     `yaml:"field,omitempty" json:"field,omitempty"`
	Of        string     `yaml:"of,omitempty" json:"of,omitempty"`
	Partition []string   `yaml:"partition,omitempty" json:"partition,omitempty"`
	Scale     float64    `yaml:"scale,omitempty" json:"scale,omitempty"`
	Round     *int       `yaml:"round,omitempty" json:"round,omitempty"`
}

// Count counts records per group.
func Count(name string) Metric { return Metric{Name: name, Kind: KindCount} }

// Sum adds a measure, ignoring absent values.
func Sum(name, field string) Metric { return Metric{Name: name, Kind: KindSum, Field: field} }

// Avg averages a measure, ignoring absent values.
func Avg(name, field string) Metric { return Metric{Name: name, Kind: KindAvg, Field: field} }

// Min takes the smallest present value of a measure.
func Min(name, field string) Metric { return Metric{Name: name, Kind: KindMin, Field: field} }

// Max takes the largest present value of a measure.
func Max(name, field string) Metric { return Metric{Name: name, Kind: KindMax, Field: field} }

// RatioOfTotal divides metric `of` by its sum across rows sharing the partition dimensions.
func RatioOfTotal(name, of string, partition ...string) Metric {
	return Metric{Name: name, Kind: KindRatio, Of: of, Partition: partition}
}

// Scaled returns a copy of m multiplied by factor.
func (m Metric) Scaled(factor float64) Metric {
	m.Scale = factor
	return m
}

// Rounded returns a copy of m rounded to decimals places.
func (m Metric) Rounded(decimals int) Metric {
	m.Round = &decimals
	return m
}

// Percent is shorthand for Scaled(100).Rounded(2).
func (m Metric) Percent() Metric {
	return m.Scaled(100).Rounded(2)
}

// Plain strips scale and rounding.
func (m Metric) Plain() Metric {
	m.Scale = 0
	m.Round = nil
	return m
}

// ============================================================================
// QUERY
// ============================================================================

// OrderTerm sorts by a grouping dimension or a metric name.
type OrderTerm struct {
	By   string `yaml:"by" json:"by"`
	Desc bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// Asc orders by name ascending.
func Asc(name string) OrderTerm { return OrderTerm{By: name} }

// Desc orders by name descending.
func Desc(name string) OrderTerm { return OrderTerm{By: name, Desc: true} }

// Query is one aggregation request: group by Dimensions, compute Metrics over
// records passing Filters, order by OrderBy, keep the first Limit rows (0 = all).
type Query struct {
	Dimensions []string    `yaml:"dimensions" json:"dimensions"`
	Metrics    []Metric    `yaml:"metrics" json:"metrics"`
	Filters    Filters     `yaml:"filters,omitempty" json:"filters,omitempty"`
	OrderBy    []OrderTerm `yaml:"order_by,omitempty" json:"orderBy,omitempty"`
	Limit      int         `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// MetricNames lists metric names in declaration order.
func (q Query) MetricNames() []string {
	names := make([]string, len(q.Metrics))
	for i, m := range q.Metrics {
		names[i] = m.Name
	}
	return names
}

// ============================================================================
// QUERY ERRORS
// ============================================================================

// ErrorKind classifies a rejected query.
type ErrorKind string

const (
	UnknownDimension       ErrorKind = "unknown_dimension"
	UnknownMetric          ErrorKind = "unknown_metric"
	InvalidPartitionSubset ErrorKind = "invalid_partition_subset"
)

// QueryError aborts a single request. No partial result accompanies it.
type QueryError struct {
	Kind    ErrorKind
	Name    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any QueryError of the same kind.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnknownDimension       = &QueryError{Kind: UnknownDimension}
	ErrUnknownMetric          = &QueryError{Kind: UnknownMetric}
	ErrInvalidPartitionSubset = &QueryError{Kind: InvalidPartitionSubset}
)

func queryErrorf(kind ErrorKind, name, format string, args ...any) *QueryError {
	return &QueryError{Kind: kind, Name: name, Message: fmt.Sprintf(format, args...)}
}
