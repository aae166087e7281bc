// Package render turns report results into tables and writes them as text,
// CSV or JSON.
package render

import (
	"fmt"
	"strconv"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cost"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/schema"
)

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData is a format-neutral table. Cells hold machine-readable
// strings: metrics use Value.String, undefined metrics are empty.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency"
	Align string `json:"align"` // "left", "right"
}

// Summary provides totals for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values,omitempty"`
}

const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeCurrency = "currency"
)

func textColumn(key string) Column {
	return Column{Key: key, Label: schema.LabelForKey(key), Type: TypeText, Align: "left"}
}

func numberColumn(key string) Column {
	return Column{Key: key, Label: schema.LabelForKey(key), Type: TypeNumber, Align: "right"}
}

func currencyColumn(key string) Column {
	return Column{Key: key, Label: schema.LabelForKey(key), Type: TypeCurrency, Align: "right"}
}

// ============================================================================
// REPORT TABLE
// ============================================================================

// Table lays out a report result: grouping dimensions, derived labels, then
// metrics, one row per group.
func Table(res *report.Result) *TableData {
	title := res.Title
	if title == "" {
		title = schema.LabelForKey(res.Report)
	}

	columns := make([]Column, 0, len(res.Columns()))
	for _, d := range res.Dimensions {
		columns = append(columns, textColumn(d))
	}
	for _, l := range res.Labels {
		columns = append(columns, textColumn(l))
	}
	for _, m := range res.Metrics {
		columns = append(columns, numberColumn(m))
	}

	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, rowCells(r, res))
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: fmt.Sprintf("%d groups over %d records", len(res.Rows), res.Records),
		},
	}
}

func rowCells(r engine.AggregateRow, res *report.Result) []string {
	cells := make([]string, 0, len(res.Dimensions)+len(res.Labels)+len(res.Metrics))
	for _, d := range res.Dimensions {
		v, _ := r.Dim(d)
		cells = append(cells, v)
	}
	for _, l := range res.Labels {
		cells = append(cells, r.Labels[l])
	}
	for _, m := range res.Metrics {
		cells = append(cells, cell(r.Value(m)))
	}
	return cells
}

func cell(v engine.Value) string {
	if !v.Valid {
		return ""
	}
	return v.String()
}

// ============================================================================
// COST TABLE
// ============================================================================

// CostTable lays out a cost breakdown with the overall line as the summary.
func CostTable(c *report.CostResult) *TableData {
	b := c.Breakdown
	columns := []Column{
		textColumn(b.Dimension),
		numberColumn("annotations"),
		numberColumn("errors"),
		currencyColumn("annotation_cost"),
		currencyColumn("rework_cost"),
		currencyColumn("total_cost"),
		numberColumn("rework_pct"),
		currencyColumn("cost_per_annotation"),
	}

	rows := make([][]string, 0, len(b.Lines))
	for _, l := range b.Lines {
		rows = append(rows, append([]string{l.Group}, costCells(l.Summary)...))
	}

	overall := costCells(b.Overall)
	values := make(map[string]string, len(overall))
	for i, v := range overall {
		values[columns[i+1].Key] = v
	}

	return &TableData{
		Title:   "Cost by " + schema.LabelForKey(b.Dimension),
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{Label: "Total", Values: values},
	}
}

func costCells(s cost.Summary) []string {
	return []string{
		strconv.FormatInt(s.TotalAnnotations, 10),
		strconv.FormatInt(s.Errors, 10),
		cost.Money(s.AnnotationCost),
		cost.Money(s.ReworkCost),
		cost.Money(s.TotalCost),
		cost.MoneyOrNull(s.ReworkPctOfTotal),
		cost.MoneyOrNull(s.CostPerAnnotation),
	}
}
