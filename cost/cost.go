// Package cost turns record and error counts into money.
//
// All arithmetic is decimal; outputs are rounded to cents. A ratio whose
// denominator is zero is null, never an error.
package cost

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
)

// Places is the number of decimals money values are rounded to.
const Places = 2

// Rates are the configured unit costs.
type Rates struct {
	AnnotationUnitCost decimal.Decimal `yaml:"annotation_unit_cost" json:"annotationUnitCost"`
	ReworkUnitCost     decimal.Decimal `yaml:"rework_unit_cost" json:"reworkUnitCost"`
}

// DefaultRates are ten cents per annotation and twenty per rework.
func DefaultRates() Rates {
	return Rates{
		AnnotationUnitCost: decimal.RequireFromString("0.10"),
		ReworkUnitCost:     decimal.RequireFromString("0.20"),
	}
}

// Validate rejects negative unit costs.
func (r Rates) Validate() error {
	if r.AnnotationUnitCost.IsNegative() {
		return fmt.Errorf("annotation unit cost %s is negative", r.AnnotationUnitCost)
	}
	if r.ReworkUnitCost.IsNegative() {
		return fmt.Errorf("rework unit cost %s is negative", r.ReworkUnitCost)
	}
	return nil
}

// Summary is the cost impact of a set of annotations.
type Summary struct {
	TotalAnnotations  int64
	Errors            int64
	AnnotationCost    decimal.Decimal
	ReworkCost        decimal.Decimal
	TotalCost         decimal.Decimal
	ReworkPctOfTotal  decimal.NullDecimal // null when TotalCost is zero
	CostPerAnnotation decimal.NullDecimal // null when TotalAnnotations is zero
}

// Summarize computes the cost of total annotations of which errors needed rework.
func Summarize(total, errors int64, rates Rates) Summary {
	n := decimal.NewFromInt(total)
	annotation := n.Mul(rates.AnnotationUnitCost)
	rework := decimal.NewFromInt(errors).Mul(rates.ReworkUnitCost)
	sum := annotation.Add(rework)

	s := Summary{
		TotalAnnotations: total,
		Errors:           errors,
		AnnotationCost:   annotation.Round(Places),
		ReworkCost:       rework.Round(Places),
		TotalCost:        sum.Round(Places),
	}
	if !sum.IsZero() {
		s.ReworkPctOfTotal = decimal.NewNullDecimal(rework.Mul(decimal.NewFromInt(100)).DivRound(sum, Places))
	}
	if total != 0 {
		s.CostPerAnnotation = decimal.NewNullDecimal(sum.DivRound(n, Places))
	}
	return s
}

// Add returns the summary of both inputs' annotations priced at rates.
func (s Summary) Add(other Summary, rates Rates) Summary {
	return Summarize(s.TotalAnnotations+other.TotalAnnotations, s.Errors+other.Errors, rates)
}

// ErrorRatePct is the share of annotations flagged as errors, in percent.
func (s Summary) ErrorRatePct() decimal.NullDecimal {
	if s.TotalAnnotations == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromInt(s.Errors * 100).DivRound(decimal.NewFromInt(s.TotalAnnotations), Places))
}

// Money formats d with exactly two decimals.
func Money(d decimal.Decimal) string { return d.StringFixed(Places) }

// MoneyOrNull formats d, or returns "" when it is null.
func MoneyOrNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return Money(d.Decimal)
}

type summaryJSON struct {
	TotalAnnotations  int64   `json:"totalAnnotations"`
	Errors            int64   `json:"errors"`
	AnnotationCost    string  `json:"annotationCost"`
	ReworkCost        string  `json:"reworkCost"`
	TotalCost         string  `json:"totalCost"`
	ReworkPctOfTotal  *string `json:"reworkPctOfTotal"`
	CostPerAnnotation *string `json:"costPerAnnotation"`
}

// MarshalJSON renders money as fixed two-decimal strings and nulls as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	opt := func(d decimal.NullDecimal) *string {
		if !d.Valid {
			return nil
		}
		v := Money(d.Decimal)
		return &v
	}
	return json.Marshal(summaryJSON{
		TotalAnnotations:  s.TotalAnnotations,
		Errors:            s.Errors,
		AnnotationCost:    Money(s.AnnotationCost),
		ReworkCost:        Money(s.ReworkCost),
		TotalCost:         Money(s.TotalCost),
		ReworkPctOfTotal:  opt(s.ReworkPctOfTotal),
		CostPerAnnotation: opt(s.CostPerAnnotation),
	})
}

// ============================================================================
// BREAKDOWN: cost per group of an aggregation result
// ============================================================================

// Line is the cost summary of one group.
type Line struct {
	Group   string  `json:"group"`
	Summary Summary `json:"summary"`
}

// Breakdown is a per-group cost table plus the overall summary.
type Breakdown struct {
	Dimension string  `json:"dimension"`
	Lines     []Line  `json:"lines"`
	Overall   Summary `json:"overall"`
}

// BreakdownOf prices each aggregate row. countMetric names the annotation
// count of a row (empty uses the row's record count); errorMetric names its
// error count. Lines keep the order of rows.
func BreakdownOf(rows []engine.AggregateRow, dim, countMetric, errorMetric string, rates Rates) (Breakdown, error) {
	b := Breakdown{Dimension: dim, Lines: make([]Line, 0, len(rows))}
	var total, errors int64
	for _, row := range rows {
		group, ok := row.Dim(dim)
		if !ok {
			return Breakdown{}, &engine.QueryError{Kind: engine.UnknownDimension, Name: dim,
				Message: fmt.Sprintf("rows are not grouped by %q", dim)}
		}
		n := row.Records
		if countMetric != "" {
			v, err := countOf(row, countMetric)
			if err != nil {
				return Breakdown{}, err
			}
			n = v
		}
		e, err := countOf(row, errorMetric)
		if err != nil {
			return Breakdown{}, err
		}
		b.Lines = append(b.Lines, Line{Group: group, Summary: Summarize(n, e, rates)})
		total += n
		errors += e
	}
	b.Overall = Summarize(total, errors, rates)
	return b, nil
}

func countOf(row engine.AggregateRow, metric string) (int64, error) {
	v, ok := row.Values[metric]
	if !ok {
		return 0, &engine.QueryError{Kind: engine.UnknownMetric, Name: metric,
			Message: fmt.Sprintf("rows carry no metric %q", metric)}
	}
	if !v.Valid {
		return 0, nil
	}
	return int64(math.Round(v.Float)), nil
}
