// Package annostat computes error-analysis reports over data-annotation
// records.
//
// Usage:
//
//	res, _ := ingest.ParseCSV(f, ingest.Options{Location: time.UTC})
//	store, failures, err := record.Build(res.Candidates,
//	    record.WithPolicy(record.PolicySkip),
//	)
//	runner := report.NewRunner(store.View(), report.Builtin())
//	out, err := runner.Run(ctx, "platform_error_rates")
//
// Records are validated once and frozen into a record.Store; every report
// reads the same immutable view. The engine package is domain-agnostic:
// it groups any engine.RecordView by dimensions and evaluates metrics.
// The cohort package tracks annotator cohorts over time, and cost prices
// annotation and rework with exact decimals.
//
// The annostat command and the server package wrap the runner as a CLI and
// a read-only HTTP API.
package annostat
