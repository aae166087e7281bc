package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/message"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/config"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/ingest"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/logging"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/observability"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/render"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	input      string
	table      string
	format     string
	outFile    string
	logMode    string
	trace      bool
}

// app is a loaded configuration plus, once load has run, the frozen store
// and a runner over it.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	printer  *message.Printer
	format   render.Format
	stdout   io.Writer
	stderr   io.Writer

	ingested ingest.Result
	failures []*record.IngestionError
	store    *record.Store
	runner   *report.Runner
	shutdown func(context.Context) error
}

// newApp loads configuration and sets up logging, metrics and tracing. Flags
// override configuration values.
func newApp(ctx context.Context, flags *globalFlags, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.input != "" {
		cfg.Input.Path = flags.input
	}
	if flags.table != "" {
		cfg.Input.Table = flags.table
	}
	if flags.logMode != "" {
		cfg.LogMode = flags.logMode
	}
	if flags.trace {
		cfg.Trace = true
	}

	format, err := render.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	shutdown, err := observability.SetupTracing(ctx, stderr, cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  observability.NewMetrics(reg),
		printer:  render.Printer(cfg.Locale),
		format:   format,
		stdout:   stdout,
		stderr:   stderr,
		shutdown: shutdown,
	}, nil
}

// load reads the input, freezes the valid records and prepares the runner.
// Under the strict policy any failure aborts with the *record.BuildError.
func (a *app) load(ctx context.Context) error {
	if a.cfg.Input.Path == "" {
		return fmt.Errorf("no input: pass --input or set input.path")
	}
	ingestOpts, err := a.cfg.IngestOptions()
	if err != nil {
		return err
	}
	ingestOpts.Logger = a.log

	res, err := ingest.Load(ctx, a.cfg.Input.Path, a.cfg.Input.Table, ingestOpts)
	if err != nil {
		return err
	}
	a.ingested = res

	buildOpts, err := a.cfg.BuildOptions()
	if err != nil {
		return err
	}
	buildOpts = append(buildOpts, record.WithLogger(a.log), record.WithSourceRows(res.SourceRows))

	store, failures, err := record.Build(res.Candidates, buildOpts...)
	a.failures = append(append([]*record.IngestionError(nil), res.Failures...), failures...)
	// Rows the adapter could not decode never reach Build; strict still aborts on them.
	if policy, _ := record.ParsePolicy(a.cfg.Policy); policy == record.PolicyStrict && len(a.failures) > 0 {
		store, err = nil, &record.BuildError{Failures: a.failures}
	}
	accepted := 0
	if store != nil {
		accepted = store.Len()
	}
	a.metrics.RecordIngest(res.Source, accepted, len(a.failures), failureKinds(a.failures))
	if err != nil {
		return err
	}
	if len(a.failures) > 0 {
		a.log.Warn("records rejected", "source", res.Source, "rejected", len(a.failures), "accepted", accepted)
	}
	a.store = store

	catalog, err := a.cfg.Catalog()
	if err != nil {
		return err
	}
	a.runner = report.NewRunner(store.View(), catalog,
		report.WithRates(a.cfg.Rates()),
		report.WithCostDimension(a.cfg.CostDimension),
		report.WithShards(a.cfg.Shards),
		report.WithConcurrency(a.cfg.Concurrency),
		report.WithLogger(a.log),
		report.WithMetrics(a.metrics),
	)
	return nil
}

// close flushes spans and the logger.
func (a *app) close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("tracing shutdown failed", "error", err)
	}
	a.log.Sync()
}

// output returns the --out file, or stdout when none was given.
func (a *app) output(path string) (io.Writer, func() error, error) {
	if path == "" {
		return a.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

func failureKinds(failures []*record.IngestionError) []string {
	kinds := make([]string, len(failures))
	for i, f := range failures {
		kinds[i] = string(f.Kind)
	}
	return kinds
}

// kindCounts tallies failures per kind, sorted by kind.
func kindCounts(failures []*record.IngestionError) [][2]string {
	counts := map[record.Kind]int{}
	for _, f := range failures {
		counts[f.Kind]++
	}
	out := make([][2]string, 0, len(counts))
	for k, n := range counts {
		out = append(out, [2]string{string(k), fmt.Sprint(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
