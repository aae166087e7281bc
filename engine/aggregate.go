package engine

import (
	"math"
)

// ============================================================================
// AGGREGATION: validate → accumulate → finalize → order → limit
// ============================================================================

// Aggregate is the main entry point for the aggregation pipeline.
// With WithShards(n > 1) the view is split into n shards accumulated in
// parallel and merged; the result is identical to a single pass.
func Aggregate(view RecordView, q Query, opts ...Option) ([]AggregateRow, error) {
	cfg := applyOptions(opts)
	if cfg.shards > 1 {
		return aggregateSharded(view, q, cfg)
	}
	p, err := Accumulate(view, q)
	if err != nil {
		return nil, err
	}
	return p.Rows(), nil
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks q against the dimensions and measures view exposes.
func Validate(view RecordView, q Query) error {
	dims := toSet(view.DimensionKeys())
	measures := toSet(view.MeasureKeys())

	grouped := make(map[string]bool, len(q.Dimensions))
	for _, d := range q.Dimensions {
		if !dims[d] {
			return queryErrorf(UnknownDimension, d, "dimension %q is not defined", d)
		}
		grouped[d] = true
	}
	for d := range q.Filters.Dimensions {
		if !dims[d] {
			return queryErrorf(UnknownDimension, d, "filter dimension %q is not defined", d)
		}
	}

	names := make(map[string]Metric, len(q.Metrics))
	for _, m := range q.Metrics {
		if m.Name == "" {
			return queryErrorf(UnknownMetric, "", "metric of kind %q has no name", m.Kind)
		}
		if _, dup := names[m.Name]; dup {
			return queryErrorf(UnknownMetric, m.Name, "metric %q is declared twice", m.Name)
		}
		names[m.Name] = m

		switch {
		case m.Kind == KindCount:
		case m.Kind.needsField():
			if !measures[m.Field] {
				return queryErrorf(UnknownMetric, m.Name, "metric %q reads unknown measure %q", m.Name, m.Field)
			}
		case m.Kind == KindRatio:
		default:
			return queryErrorf(UnknownMetric, m.Name, "metric %q has unknown kind %q", m.Name, m.Kind)
		}
	}

	for _, m := range q.Metrics {
		if m.Kind != KindRatio {
			continue
		}
		of, ok := names[m.Of]
		if !ok || of.Kind == KindRatio {
			return queryErrorf(UnknownMetric, m.Name, "ratio %q must reference a non-ratio metric of the same query, got %q", m.Name, m.Of)
		}
		for _, d := range m.Partition {
			if !grouped[d] {
				return queryErrorf(InvalidPartitionSubset, m.Name,
					"ratio %q partitions by %q, which is not a grouping dimension", m.Name, d)
			}
		}
	}

	for _, t := range q.OrderBy {
		if grouped[t.By] {
			continue
		}
		if _, ok := names[t.By]; ok {
			continue
		}
		return queryErrorf(UnknownDimension, t.By, "order term %q names neither a grouping dimension nor a metric", t.By)
	}
	return nil
}

// ============================================================================
// FINALIZE
// ============================================================================

// Rows finalizes the partial into ordered aggregate rows. Calling Rows does
// not consume the partial; further merges remain possible.
func (p *Partial) Rows() []AggregateRow {
	q := p.query
	rows := make([]AggregateRow, 0, len(p.groups))
	raws := make([][]Value, 0, len(p.groups))

	for _, g := range p.groups {
		raw := make([]Value, len(q.Metrics))
		slot := 0
		for i, m := range q.Metrics {
			switch {
			case m.Kind == KindCount:
				raw[i] = Float(float64(g.records))
			case m.Kind.needsField():
				raw[i] = g.accs[slot].reduce(m.Kind)
				slot++
			}
		}
		rows = append(rows, AggregateRow{
			Dimensions: q.Dimensions,
			Key:        append(GroupKey(nil), g.key...),
			Records:    g.records,
			Values:     make(map[string]Value, len(q.Metrics)),
		})
		raws = append(raws, raw)
	}

	p.resolveRatios(rows, raws)

	for r := range rows {
		for i, m := range q.Metrics {
			rows[r].Values[m.Name] = present(m, raws[r][i])
		}
	}

	sortRows(rows, q, p.ordinals)

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows
}

// resolveRatios fills ratio slots in raws. A ratio is undefined when its
// numerator is undefined or the partition's denominator is zero.
func (p *Partial) resolveRatios(rows []AggregateRow, raws [][]Value) {
	q := p.query
	index := make(map[string]int, len(q.Metrics))
	for i, m := range q.Metrics {
		index[m.Name] = i
	}
	dimIndex := make(map[string]int, len(q.Dimensions))
	for i, d := range q.Dimensions {
		dimIndex[d] = i
	}

	for i, m := range q.Metrics {
		if m.Kind != KindRatio {
			continue
		}
		of := index[m.Of]
		partKey := func(row AggregateRow) string {
			part := make(GroupKey, len(m.Partition))
			for j, d := range m.Partition {
				part[j] = row.Key[dimIndex[d]]
			}
			return part.String()
		}

		totals := make(map[string]float64)
		for r, row := range rows {
			if v := raws[r][of]; v.Valid {
				totals[partKey(row)] += v.Float
			}
		}
		for r, row := range rows {
			num := raws[r][of]
			den := totals[partKey(row)]
			if !num.Valid || den == 0 {
				raws[r][i] = Null()
				continue
			}
			raws[r][i] = Float(num.Float / den)
		}
	}
}

// present applies a metric's scale and rounding.
func present(m Metric, v Value) Value {
	if !v.Valid {
		return v
	}
	f := v.Float
	if m.Scale != 0 {
		f *= m.Scale
	}
	if m.Round != nil {
		f = Round(f, *m.Round)
	}
	return Float(f)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// ============================================================================
// DERIVED LABELS: aggregate-level bucketizers
// ============================================================================

// Derive returns copies of rows labelled name = fn(row). Use it for
// classifications that need aggregate values, then regroup with NewRowsView.
func Derive(rows []AggregateRow, name string, fn func(AggregateRow) string) []AggregateRow {
	out := make([]AggregateRow, len(rows))
	for i, r := range rows {
		labels := make(map[string]string, len(r.Labels)+1)
		for k, v := range r.Labels {
			labels[k] = v
		}
		labels[name] = fn(r)
		r.Labels = labels
		out[i] = r
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
