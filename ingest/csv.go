package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

// ============================================================================
// CSV ADAPTER
// ============================================================================
// The caller opens the file (or any reader). Headers are matched to canonical
// columns case-insensitively; unmapped columns are ignored.
// ============================================================================

// ParseCSV reads annotation rows from r. A row with a wrong field count or
// an unparseable value becomes a MalformedField failure; reading continues.
// Only a missing or unreadable header is fatal.
func ParseCSV(r io.Reader, opts Options) (Result, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("csv: empty input, no header row")
		}
		return Result{}, fmt.Errorf("csv: read header: %w", err)
	}

	cols := make([]string, len(headers))
	mapped := 0
	for i, h := range headers {
		cols[i] = canonical(h)
		if cols[i] != "" {
			mapped++
		}
	}
	if mapped == 0 {
		return Result{}, fmt.Errorf("csv: no recognized columns in header %v", headers)
	}

	c := newCollector("csv", opts)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.malformed(err)
			continue
		}

		values := make(map[string]string, mapped)
		for i, val := range row {
			if cols[i] != "" {
				values[cols[i]] = val
			}
		}
		c.add(values)
	}
	return c.done(), nil
}

// WriteCSV writes records with the canonical header. Absent scores are empty
// cells, timestamps are RFC 3339.
func WriteCSV(w io.Writer, recs []record.AnnotationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(encode(r)); err != nil {
			return fmt.Errorf("csv: write record %q: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
