package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts text (alias table), csv or json. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, csv or json)", s)
}

// Printer returns a number printer for locale, falling back to English.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Missing is rendered in text tables for undefined metrics.
const Missing = "n/a"

var (
	colorTitle  = lipgloss.Color("#20B9B4")
	colorBorder = lipgloss.Color("#2C4A54")
)

// ============================================================================
// TEXT
// ============================================================================

// WriteText writes t as a bordered table with localized numbers.
func WriteText(w io.Writer, t *TableData, p *message.Printer) error {
	if p == nil {
		p = Printer("")
	}
	re := lipgloss.NewRenderer(w)
	titleStyle := re.NewStyle().Bold(true).Foreground(colorTitle)
	headerStyle := re.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := re.NewStyle().Padding(0, 1)
	mutedStyle := re.NewStyle().Foreground(colorBorder)

	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		headers[i] = c.Label
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = formatCell(t.Columns[j], v, p)
		}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col < len(t.Columns) && t.Columns[col].Align == "right" {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	if _, err := fmt.Fprintln(w, titleStyle.Render(t.Title)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return err
	}
	if t.Summary != nil {
		line := t.Summary.Label
		for _, c := range t.Columns {
			if v, ok := t.Summary.Values[c.Key]; ok {
				line += fmt.Sprintf("  %s: %s", c.Label, formatCell(c, v, p))
			}
		}
		if _, err := fmt.Fprintln(w, mutedStyle.Render(line)); err != nil {
			return err
		}
	}
	return nil
}

// formatCell localizes numeric cells, keeping the precision the metric was
// rounded to.
func formatCell(c Column, v string, p *message.Printer) string {
	if v == "" {
		if c.Type == TypeText {
			return ""
		}
		return Missing
	}
	if c.Type == TypeText {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	decimals := 0
	if i := strings.IndexByte(v, '.'); i >= 0 {
		decimals = len(v) - i - 1
	}
	if c.Type == TypeCurrency {
		decimals = 2
	}
	return p.Sprintf("%v", number.Decimal(f, number.Scale(decimals)))
}

// ============================================================================
// CSV + JSON
// ============================================================================

// WriteCSV writes t with column keys as the header and raw cell values.
func WriteCSV(w io.Writer, t *TableData) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Key
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================================================
// DISPATCH
// ============================================================================

// Results writes report results in format. JSON emits a single array; text
// and CSV emit one table per result separated by a blank line.
func Results(w io.Writer, format Format, results []*report.Result, p *message.Printer) error {
	if format == FormatJSON {
		return WriteJSON(w, results)
	}
	for i, res := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := Write(w, format, Table(res), p); err != nil {
			return fmt.Errorf("render %s: %w", res.Report, err)
		}
	}
	return nil
}

// Cost writes a cost result in format.
func Cost(w io.Writer, format Format, c *report.CostResult, p *message.Printer) error {
	if format == FormatJSON {
		return WriteJSON(w, c)
	}
	return Write(w, format, CostTable(c), p)
}

// Write writes t as a text or CSV table. JSON callers marshal their own
// values with WriteJSON.
func Write(w io.Writer, format Format, t *TableData, p *message.Printer) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatText, "":
		return WriteText(w, t, p)
	}
	return fmt.Errorf("unknown output format %q", format)
}
