// Package cohort computes two-level cohort trends over a record view.
//
// Trend aggregates per entity first (per annotator, say) and then summarizes
// the per-entity values within each (group, period) cell, so every entity
// weighs the same regardless of how many records it produced. Pooled is the
// single-pass counterpart where every record weighs the same. The two differ
// whenever entities contribute unequal record counts; callers choose.
package cohort

import (
	"fmt"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

// EntitiesMetric is the per-cell entity count Trend reports.
const EntitiesMetric = "entities"

// RecordsMetric is the per-cell record count Pooled reports.
const RecordsMetric = "records"

// Query describes a cohort trend.
//
// Entity is the dimension averaged within (annotator_id); Group is an optional
// outer dimension (platform); Period is the ordered cohort dimension
// (cohort_period). Metric is computed per entity in the first pass; its scale
// and rounding apply to the summarized values only.
type Query struct {
	Entity  string         `yaml:"entity" json:"entity"`
	Group   string         `yaml:"group,omitempty" json:"group,omitempty"`
	Period  string         `yaml:"period" json:"period"`
	Metric  engine.Metric  `yaml:"metric" json:"metric"`
	Filters engine.Filters `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// Dimensions are the output grouping dimensions, group first when present.
func (q Query) Dimensions() []string {
	if q.Group == "" {
		return []string{q.Period}
	}
	return []string{q.Group, q.Period}
}

// MeanName, MinName and MaxName name the summary values of Trend rows.
func (q Query) MeanName() string { return q.Metric.Name + "_mean" }
func (q Query) MinName() string  { return q.Metric.Name + "_min" }
func (q Query) MaxName() string  { return q.Metric.Name + "_max" }

func (q Query) validate() error {
	switch {
	case q.Entity == "":
		return &engine.QueryError{Kind: engine.UnknownDimension, Message: "cohort entity dimension is required"}
	case q.Period == "":
		return &engine.QueryError{Kind: engine.UnknownDimension, Message: "cohort period dimension is required"}
	case q.Entity == q.Period || q.Entity == q.Group:
		return &engine.QueryError{Kind: engine.UnknownDimension, Name: q.Entity,
			Message: fmt.Sprintf("cohort entity %q must differ from the group and period dimensions", q.Entity)}
	case q.Metric.Name == engine.RecordsMeasure:
		return &engine.QueryError{Kind: engine.UnknownMetric, Name: q.Metric.Name,
			Message: fmt.Sprintf("cohort metric name %q is reserved for record counts", q.Metric.Name)}
	case q.Metric.Kind == engine.KindRatio:
		return &engine.QueryError{Kind: engine.UnknownMetric, Name: q.Metric.Name,
			Message: fmt.Sprintf("cohort metric %q cannot be a ratio", q.Metric.Name)}
	}
	return nil
}

// Trend runs the two-level aggregation. Rows carry the mean, min and max of
// the per-entity metric plus the entity count, ordered by group then period.
// Entities whose metric is undefined in a cell do not contribute to its
// summary but are still counted.
func Trend(view engine.RecordView, q Query, opts ...engine.Option) ([]engine.AggregateRow, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	first := engine.Query{
		Dimensions: append(q.Dimensions(), q.Entity),
		Metrics:    []engine.Metric{q.Metric.Plain()},
		Filters:    q.Filters,
	}
	perEntity, err := engine.Aggregate(view, first, opts...)
	if err != nil {
		return nil, err
	}
	if len(perEntity) == 0 {
		return []engine.AggregateRow{}, nil
	}

	summarize := func(m engine.Metric) engine.Metric {
		m.Scale = q.Metric.Scale
		m.Round = q.Metric.Round
		return m
	}
	second := engine.Query{
		Dimensions: q.Dimensions(),
		Metrics: []engine.Metric{
			summarize(engine.Avg(q.MeanName(), q.Metric.Name)),
			summarize(engine.Min(q.MinName(), q.Metric.Name)),
			summarize(engine.Max(q.MaxName(), q.Metric.Name)),
			engine.Count(EntitiesMetric),
		},
		OrderBy: orderBy(q),
	}
	return engine.Aggregate(engine.NewRowsView(perEntity, view), second)
}

// Pooled aggregates q.Metric directly per (group, period), every record
// weighing the same.
func Pooled(view engine.RecordView, q Query, opts ...engine.Option) ([]engine.AggregateRow, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return engine.Aggregate(view, engine.Query{
		Dimensions: q.Dimensions(),
		Metrics:    []engine.Metric{q.Metric, engine.Count(RecordsMetric)},
		Filters:    q.Filters,
		OrderBy:    orderBy(q),
	}, opts...)
}

func orderBy(q Query) []engine.OrderTerm {
	terms := make([]engine.OrderTerm, 0, 2)
	for _, d := range q.Dimensions() {
		terms = append(terms, engine.Asc(d))
	}
	return terms
}
