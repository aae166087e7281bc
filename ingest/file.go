package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads path with the adapter its extension selects: .csv and .tsv go
// through ParseCSV, .db, .sqlite and .sqlite3 through LoadSQLite on table.
func Load(ctx context.Context, path, table string, opts Options) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		if strings.EqualFold(filepath.Ext(path), ".tsv") && opts.Comma == 0 {
			opts.Comma = '\t'
		}
		f, err := os.Open(path)
		if err != nil {
			return Result{}, fmt.Errorf("ingest: %w", err)
		}
		defer f.Close()
		res, err := ParseCSV(f, opts)
		if err != nil {
			return Result{}, fmt.Errorf("ingest %s: %w", path, err)
		}
		res.Source = path
		return res, nil

	case ".db", ".sqlite", ".sqlite3":
		if _, err := os.Stat(path); err != nil {
			return Result{}, fmt.Errorf("ingest: %w", err)
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return Result{}, err
		}
		defer db.Close()
		if table == "" {
			table = DefaultTable
		}
		res, err := LoadSQLite(ctx, db, table, opts)
		if err != nil {
			return Result{}, fmt.Errorf("ingest %s: %w", path, err)
		}
		res.Source = path
		return res, nil
	}
	return Result{}, fmt.Errorf("ingest: unsupported input %q (want .csv, .tsv, .db, .sqlite or .sqlite3)", path)
}
