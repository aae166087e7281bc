package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/ingest"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/render"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/server"
)

// newRootCmd assembles the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "annostat",
		Short: "Error analysis over annotation exports",
		Long: `annostat validates annotation records exported from labeling platforms
and computes error-rate, quality, cohort and cost reports over them.

Input is a CSV/TSV export or a SQLite database. Configuration comes from
a YAML file (--config or ANNOSTAT_CONFIG) and ANNOSTAT_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config file")
	pf.StringVarP(&flags.input, "input", "i", "", "Annotation export: .csv, .tsv or a SQLite database")
	pf.StringVar(&flags.table, "table", "", "Table to read when --input is a SQLite database")
	pf.StringVarP(&flags.format, "format", "f", "table", "Output format: table, csv, json")
	pf.StringVarP(&flags.outFile, "out", "o", "", "Write output to file instead of stdout")
	pf.StringVar(&flags.logMode, "log-mode", "", "Log mode: development, production, quiet")
	pf.BoolVar(&flags.trace, "trace", false, "Write trace spans to stderr")

	root.AddCommand(
		newValidateCmd(flags),
		newReportsCmd(flags),
		newReportCmd(flags),
		newCostCmd(flags),
		newDimensionsCmd(flags),
		newServeCmd(flags),
		newImportCmd(flags),
		newVersionCmd(),
	)
	return root
}

// withApp runs fn against a configured app, loading records first when
// needData is set.
func withApp(cmd *cobra.Command, flags *globalFlags, needData bool, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if needData {
		if err := a.load(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

// ============================================================================
// VALIDATE
// ============================================================================

type validation struct {
	Source   string                   `json:"source"`
	Rows     int                      `json:"rows"`
	Accepted int                      `json:"accepted"`
	Rejected int                      `json:"rejected"`
	Failures []*record.IngestionError `json:"failures"`
	ByKind   map[string]int           `json:"byKind"`
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var showAll bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the input and summarize rejected records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, true, func(ctx context.Context, a *app) error {
				w, closeOut, err := a.output(flags.outFile)
				if err != nil {
					return err
				}
				defer closeOut()

				v := validation{
					Source:   a.ingested.Source,
					Rows:     a.ingested.Rows,
					Accepted: a.store.Len(),
					Rejected: len(a.failures),
					Failures: a.failures,
					ByKind:   map[string]int{},
				}
				for _, f := range a.failures {
					v.ByKind[string(f.Kind)]++
				}
				if a.format == render.FormatJSON {
					return render.WriteJSON(w, v)
				}

				t := &render.TableData{
					Title: fmt.Sprintf("Validation of %s", v.Source),
					Columns: []render.Column{
						{Key: "kind", Label: "Failure", Type: render.TypeText},
						{Key: "records", Label: "Count", Type: render.TypeNumber, Align: "right"},
					},
					Summary: &render.Summary{Label: fmt.Sprintf("%d of %d rows accepted", v.Accepted, v.Rows)},
				}
				for _, kc := range kindCounts(a.failures) {
					t.Rows = append(t.Rows, []string{kc[0], kc[1]})
				}
				if showAll {
					t.Columns = []render.Column{
						{Key: "row", Label: "Row", Type: render.TypeText, Align: "right"},
						{Key: "record_id", Label: "Record", Type: render.TypeText},
						{Key: "kind", Label: "Failure", Type: render.TypeText},
						{Key: "field", Label: "Field", Type: render.TypeText},
						{Key: "message", Label: "Message", Type: render.TypeText},
					}
					t.Rows = t.Rows[:0]
					for _, f := range a.failures {
						t.Rows = append(t.Rows, []string{strconv.Itoa(f.Row), f.RecordID, string(f.Kind), f.Field, f.Message})
					}
				}
				return render.Write(w, a.format, t, a.printer)
			})
		},
	}
	cmd.Flags().BoolVar(&showAll, "all", false, "List every rejected record instead of counts per kind")
	return cmd
}

// ============================================================================
// REPORTS
// ============================================================================

func newReportsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List the report catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app) error {
				catalog, err := a.cfg.Catalog()
				if err != nil {
					return err
				}
				w, closeOut, err := a.output(flags.outFile)
				if err != nil {
					return err
				}
				defer closeOut()

				specs := catalog.Specs()
				if a.format == render.FormatJSON {
					return render.WriteJSON(w, specs)
				}
				t := &render.TableData{
					Title: "Reports",
					Columns: []render.Column{
						{Key: "name", Label: "Name", Type: render.TypeText},
						{Key: "kind", Label: "Kind", Type: render.TypeText},
						{Key: "title", Label: "Title", Type: render.TypeText},
					},
				}
				for _, s := range specs {
					kind := string(s.Kind)
					if kind == "" {
						kind = string(report.KindAggregate)
					}
					t.Rows = append(t.Rows, []string{s.Name, kind, s.Title})
				}
				return render.Write(w, a.format, t, a.printer)
			})
		},
	}
}

func newReportCmd(flags *globalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "report [name...]",
		Short: "Run one or more reports",
		Example: `  annostat report platform_error_rates -i annotations.csv
  annostat report --all -i annotations.db -f json -o reports.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all takes no report names")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("name a report or pass --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, true, func(ctx context.Context, a *app) error {
				var results []*report.Result
				if all {
					res, err := a.runner.RunAll(ctx)
					if err != nil {
						return err
					}
					results = res
				} else {
					for _, name := range args {
						res, err := a.runner.Run(ctx, name)
						if err != nil {
							return err
						}
						results = append(results, res)
					}
				}

				w, closeOut, err := a.output(flags.outFile)
				if err != nil {
					return err
				}
				defer closeOut()
				if err := render.Results(w, a.format, results, a.printer); err != nil {
					return err
				}
				if flags.outFile != "" {
					a.log.Info("reports written", "path", flags.outFile, "reports", len(results))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Run every report in the catalog")
	return cmd
}

// ============================================================================
// COST
// ============================================================================

func newCostCmd(flags *globalFlags) *cobra.Command {
	var dimension string
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate annotation and rework cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app) error {
				// The runner is built by load, so the override goes first.
				if dimension != "" {
					a.cfg.CostDimension = dimension
				}
				if err := a.load(ctx); err != nil {
					return err
				}
				res, err := a.runner.Cost(ctx)
				if err != nil {
					return err
				}
				w, closeOut, err := a.output(flags.outFile)
				if err != nil {
					return err
				}
				defer closeOut()
				return render.Cost(w, a.format, res, a.printer)
			})
		},
	}
	cmd.Flags().StringVar(&dimension, "by", "", "Dimension to break cost down by (default from config)")
	return cmd
}

// ============================================================================
// DIMENSIONS
// ============================================================================

func newDimensionsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dimensions",
		Short: "List the dimensions and measures reports can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, false, func(ctx context.Context, a *app) error {
				catalog := record.Catalog()
				w, closeOut, err := a.output(flags.outFile)
				if err != nil {
					return err
				}
				defer closeOut()
				if a.format == render.FormatJSON {
					return render.WriteJSON(w, catalog)
				}

				t := &render.TableData{
					Title: catalog.Name,
					Columns: []render.Column{
						{Key: "key", Label: "Key", Type: render.TypeText},
						{Key: "type", Label: "Type", Type: render.TypeText},
						{Key: "name", Label: "Name", Type: render.TypeText},
					},
				}
				for _, d := range catalog.Dimensions {
					t.Rows = append(t.Rows, []string{d.Key, "dimension", d.DisplayName})
				}
				for _, m := range catalog.Measures {
					t.Rows = append(t.Rows, []string{m.Key, "measure", m.DisplayName})
				}
				return render.Write(w, a.format, t, a.printer)
			})
		},
	}
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, true, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				srv := server.New(server.Config{
					Runner:   a.runner,
					Catalog:  a.store.Catalog(),
					Logger:   a.log,
					Metrics:  a.metrics,
					Gatherer: a.registry,
				})
				return srv.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// ============================================================================
// IMPORT
// ============================================================================

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <database>",
		Short: "Validate the input and store accepted records in a SQLite database",
		Example: `  annostat import annotations.db -i export.csv --table batch_2024_06`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, true, func(ctx context.Context, a *app) error {
				db, err := ingest.OpenSQLite(args[0])
				if err != nil {
					return err
				}
				defer db.Close()

				table := a.cfg.Input.Table
				if err := ingest.CreateTable(ctx, db, table); err != nil {
					return err
				}
				recs := make([]record.AnnotationRecord, 0, a.store.Len())
				a.store.Each(func(r record.AnnotationRecord) bool {
					recs = append(recs, r)
					return true
				})
				start := time.Now()
				if err := ingest.InsertRecords(ctx, db, table, recs); err != nil {
					return err
				}
				a.log.Info("records imported", "database", args[0], "table", table,
					"records", len(recs), "rejected", len(a.failures), "duration", time.Since(start))
				_, err = fmt.Fprintf(a.stdout, "imported %d records into %s (%s), %d rejected\n",
					len(recs), args[0], table, len(a.failures))
				return err
			})
		},
	}
}

// ============================================================================
// VERSION
// ============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "annostat %s\n", version)
			return err
		},
	}
}
