package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/bucket"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cohort"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/cost"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/logging"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/observability"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

const tracerName = "github.com/valentinejelimo/Data-Annotation-Error-analysis/report"

// ============================================================================
// RESULT
// ============================================================================

// Result is one executed report.
type Result struct {
	RunID       string                `json:"runId"`
	Report      string                `json:"report"`
	Title       string                `json:"title"`
	Kind        Kind                  `json:"kind"`
	Dimensions  []string              `json:"dimensions"`
	Labels      []string              `json:"labels,omitempty"`
	Metrics     []string              `json:"metrics"`
	Rows        []engine.AggregateRow `json:"rows"`
	Records     int                   `json:"records"`
	GeneratedAt time.Time             `json:"generatedAt"`
	DurationMs  float64               `json:"durationMs"`
}

// Columns lists dimensions, derived labels and metrics in display order.
func (r *Result) Columns() []string {
	cols := make([]string, 0, len(r.Dimensions)+len(r.Labels)+len(r.Metrics))
	cols = append(cols, r.Dimensions...)
	cols = append(cols, r.Labels...)
	return append(cols, r.Metrics...)
}

// CostResult is the cost model applied to the snapshot.
type CostResult struct {
	RunID       string         `json:"runId"`
	Rates       cost.Rates     `json:"rates"`
	Breakdown   cost.Breakdown `json:"breakdown"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// ============================================================================
// RUNNER
// ============================================================================

// Runner executes catalog reports over one frozen view. Runs never mutate the
// view and may proceed in parallel.
type Runner struct {
	view        engine.RecordView
	catalog     *Catalog
	rates       cost.Rates
	costDim     string
	shards      int
	concurrency int
	log         *logging.Logger
	metrics     *observability.Metrics
	tp          trace.TracerProvider
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRates sets the unit costs used by Cost.
func WithRates(r cost.Rates) Option { return func(rn *Runner) { rn.rates = r } }

// WithCostDimension sets the dimension Cost breaks down by. Default platform.
func WithCostDimension(dim string) Option { return func(rn *Runner) { rn.costDim = dim } }

// WithShards accumulates each report over n shards.
func WithShards(n int) Option { return func(rn *Runner) { rn.shards = n } }

// WithConcurrency bounds how many reports RunAll executes at once. 0 = all.
func WithConcurrency(n int) Option { return func(rn *Runner) { rn.concurrency = n } }

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option { return func(rn *Runner) { rn.log = l } }

// WithMetrics records runs on m.
func WithMetrics(m *observability.Metrics) Option { return func(rn *Runner) { rn.metrics = m } }

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option { return func(rn *Runner) { rn.tp = tp } }

// WithClock sets the clock used for result timestamps.
func WithClock(now func() time.Time) Option { return func(rn *Runner) { rn.now = now } }

// NewRunner creates a Runner over view.
func NewRunner(view engine.RecordView, catalog *Catalog, opts ...Option) *Runner {
	r := &Runner{
		view:    view,
		catalog: catalog,
		rates:   cost.DefaultRates(),
		costDim: record.DimPlatform,
		shards:  1,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = logging.OrNop(r.log)
	return r
}

// Catalog returns the runner's catalog.
func (r *Runner) Catalog() *Catalog { return r.catalog }

// Records returns the number of records in the view reports run over.
func (r *Runner) Records() int { return r.view.Len() }

func (r *Runner) tracer() trace.Tracer {
	if r.tp != nil {
		return r.tp.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// Run executes the named report.
func (r *Runner) Run(ctx context.Context, name string) (*Result, error) {
	spec, err := r.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return r.RunSpec(ctx, spec)
}

// RunSpec executes spec, which need not be in the catalog.
func (r *Runner) RunSpec(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	_, span := r.tracer().Start(ctx, "report.run",
		trace.WithAttributes(
			attribute.String("report.name", spec.Name),
			attribute.String("report.kind", string(spec.kind())),
			attribute.String("report.run_id", runID),
			attribute.Int("report.records", r.view.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := r.execute(spec)
	elapsed := time.Since(start)

	rows := 0
	if res != nil {
		rows = len(res.Rows)
	}
	r.metrics.RecordReportRun(spec.Name, err, elapsed, rows)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Warn("report failed", "report", spec.Name, "run_id", runID, "error", err)
		return nil, fmt.Errorf("report %s: %w", spec.Name, err)
	}

	res.RunID = runID
	res.GeneratedAt = r.now()
	res.DurationMs = float64(elapsed.Microseconds()) / 1000
	span.SetAttributes(attribute.Int("report.rows", rows))
	r.log.Debug("report finished", "report", spec.Name, "run_id", runID, "rows", rows, "duration", elapsed)
	return res, nil
}

// RunAll executes every catalog report in parallel. Results follow catalog
// order; the first failure aborts the batch and no results are returned.
func (r *Runner) RunAll(ctx context.Context) ([]*Result, error) {
	specs := r.catalog.Specs()
	results := make([]*Result, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, spec := range specs {
		g.Go(func() error {
			res, err := r.RunSpec(gctx, spec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Info("reports finished", "reports", len(results), "records", r.view.Len())
	return results, nil
}

// Cost prices the snapshot, broken down by the cost dimension.
func (r *Runner) Cost(ctx context.Context) (*CostResult, error) {
	_, span := r.tracer().Start(ctx, "report.cost",
		trace.WithAttributes(attribute.String("cost.dimension", r.costDim)))
	defer span.End()

	rows, err := engine.Aggregate(r.view, engine.Query{
		Dimensions: []string{r.costDim},
		Metrics:    []engine.Metric{annotations(), errorCount()},
	}, engine.WithShards(r.shards))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cost: %w", err)
	}
	b, err := cost.BreakdownOf(rows, r.costDim, MetricAnnotations, MetricErrors, r.rates)
	if err != nil {
		return nil, fmt.Errorf("cost: %w", err)
	}
	return &CostResult{
		RunID:       uuid.NewString(),
		Rates:       r.rates,
		Breakdown:   b,
		GeneratedAt: r.now(),
	}, nil
}

// ============================================================================
// EXECUTION
// ============================================================================

func (r *Runner) execute(spec Spec) (*Result, error) {
	res := &Result{
		Report:  spec.Name,
		Title:   spec.Title,
		Kind:    spec.kind(),
		Records: r.view.Len(),
	}
	opts := []engine.Option{engine.WithShards(r.shards)}

	switch spec.kind() {
	case KindCohort, KindPooled:
		q := spec.CohortQuery()
		var rows []engine.AggregateRow
		var err error
		if spec.kind() == KindCohort {
			rows, err = cohort.Trend(r.view, q, opts...)
			res.Metrics = []string{q.MeanName(), q.MinName(), q.MaxName(), cohort.EntitiesMetric}
		} else {
			rows, err = cohort.Pooled(r.view, q, opts...)
			res.Metrics = []string{q.Metric.Name, cohort.RecordsMetric}
		}
		if err != nil {
			return nil, err
		}
		if spec.Limit > 0 && len(rows) > spec.Limit {
			rows = rows[:spec.Limit]
		}
		res.Dimensions = q.Dimensions()
		res.Rows = rows
		return res, nil
	}

	rows, err := engine.Aggregate(r.view, spec.Query(), opts...)
	if err != nil {
		return nil, err
	}
	res.Dimensions = spec.Dimensions
	res.Metrics = spec.Query().MetricNames()

	var ord bucket.Ordinal
	if spec.Derive != nil {
		rows, ord = derive(rows, *spec.Derive)
		res.Labels = []string{spec.Derive.Name}
	}
	if spec.Rollup != nil {
		view := engine.NewRowsView(rows, r.view)
		if ord != nil {
			view.WithOrdinal(spec.Derive.Name, ord)
		}
		rows, err = rollup(view, spec.Rollup)
		if err != nil {
			return nil, err
		}
		res.Dimensions = spec.Rollup.Dimensions
		res.Labels = nil
		res.Metrics = engine.Query{Metrics: spec.Rollup.Metrics}.MetricNames()
	}

	res.Rows = rows
	return res, nil
}

// rollup regroups first-pass rows. An empty first pass exposes no keys to
// validate against, so it short-circuits to an empty result.
func rollup(view *engine.RowsView, ru *Rollup) ([]engine.AggregateRow, error) {
	if view.Len() == 0 {
		return []engine.AggregateRow{}, nil
	}
	return engine.Aggregate(view, engine.Query{
		Dimensions: ru.Dimensions,
		Metrics:    ru.Metrics,
		OrderBy:    ru.OrderBy,
	})
}
