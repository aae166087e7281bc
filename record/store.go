package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/logging"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/schema"
)

// Policy decides what Build does with invalid candidates.
type Policy string

const (
	// PolicyStrict aborts the build on the first batch containing any invalid record.
	PolicyStrict Policy = "strict"
	// PolicySkip drops invalid records and reports them.
	PolicySkip Policy = "skip"
)

// ParsePolicy accepts "strict" or "skip", case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict:
		return PolicyStrict, nil
	case PolicySkip, "":
		return PolicySkip, nil
	}
	return "", fmt.Errorf("unknown ingestion policy %q (want strict or skip)", s)
}

// ============================================================================
// OPTIONS
// ============================================================================

// Option configures Build.
type Option func(*buildConfig)

type buildConfig struct {
	policy     Policy
	errorTypes []string
	clock      func() time.Time
	loc        *time.Location
	log        *logging.Logger
	sourceRows []int
}

// row returns the number failures for candidate i are reported under.
func (c *buildConfig) row(i int) int {
	if i < len(c.sourceRows) && c.sourceRows[i] > 0 {
		return c.sourceRows[i]
	}
	return i + 1
}

// WithPolicy sets the ingestion policy. Default is PolicySkip.
func WithPolicy(p Policy) Option {
	return func(c *buildConfig) { c.policy = p }
}

// WithKnownErrorTypes replaces DefaultErrorTypes.
func WithKnownErrorTypes(types ...string) Option {
	return func(c *buildConfig) { c.errorTypes = types }
}

// WithClock sets the reference time used to reject future timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *buildConfig) { c.clock = now }
}

// WithLocation sets the time zone temporal dimensions are derived in. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *buildConfig) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithSourceRows reports failures under the given input row numbers, one per
// candidate, instead of the candidate's position. Adapters that drop
// undecodable rows pass this so every failure names the same row numbering.
func WithSourceRows(rows []int) Option {
	return func(c *buildConfig) { c.sourceRows = rows }
}

// WithLogger attaches a logger for build diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(c *buildConfig) { c.log = l }
}

// ============================================================================
// STORE
// ============================================================================

// Store is a frozen, validated snapshot of annotation records.
// It is safe for concurrent readers.
type Store struct {
	records []AnnotationRecord
	loc     *time.Location
	view    engine.RecordView
	builtAt time.Time
}

// Build validates candidates and freezes the valid ones into a Store.
//
// Under PolicyStrict any failure aborts the build with a *BuildError and a nil
// Store. Under PolicySkip the Store holds the valid records and the failures
// are returned alongside it. An empty ErrorType on a record without an error
// is read as ErrorTypeNone.
func Build(candidates []AnnotationRecord, opts ...Option) (*Store, []*IngestionError, error) {
	cfg := &buildConfig{
		policy:     PolicySkip,
		errorTypes: DefaultErrorTypes,
		clock:      time.Now,
		loc:        time.UTC,
	}
	for _, o := range opts {
		o(cfg)
	}
	log := logging.OrNop(cfg.log)

	rules := NewRules(cfg.errorTypes, cfg.clock())
	seen := make(map[string]int, len(candidates))
	accepted := make([]AnnotationRecord, 0, len(candidates))
	var failures []*IngestionError

	for i, rec := range candidates {
		if !rec.ErrorFlag && rec.ErrorType == "" {
			rec.ErrorType = ErrorTypeNone
		}
		errs := Validate(rec, rules)
		if rec.ID != "" {
			if first, dup := seen[rec.ID]; dup {
				errs = append(errs, &IngestionError{
					Kind:     DuplicateRecordID,
					RecordID: rec.ID,
					Field:    "id",
					Message:  fmt.Sprintf("id already used by row %d", first),
				})
			} else {
				seen[rec.ID] = cfg.row(i)
			}
		}
		if len(errs) > 0 {
			for _, e := range errs {
				e.Row = cfg.row(i)
				log.Debug("rejected record", "row", e.Row, "record_id", e.RecordID, "kind", string(e.Kind), "reason", e.Message)
			}
			failures = append(failures, errs...)
			continue
		}
		accepted = append(accepted, rec)
	}

	if cfg.policy == PolicyStrict && len(failures) > 0 {
		log.Warn("record store build aborted", "candidates", len(candidates), "failures", len(failures))
		return nil, failures, &BuildError{Failures: failures}
	}

	s := &Store{
		records: accepted,
		loc:     cfg.loc,
		builtAt: cfg.clock(),
	}
	s.view = newAdapter(cfg.loc).Bind(s.records)

	log.Info("record store built",
		"policy", string(cfg.policy),
		"candidates", len(candidates),
		"accepted", len(accepted),
		"failures", len(failures),
	)
	return s, failures, nil
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// At returns a copy of the i-th record.
func (s *Store) At(i int) AnnotationRecord { return s.records[i] }

// Each calls fn with a copy of every record in ingestion order until fn returns false.
func (s *Store) Each(fn func(AnnotationRecord) bool) {
	for _, r := range s.records {
		if !fn(r) {
			return
		}
	}
}

// View exposes the store to the aggregation engine.
func (s *Store) View() engine.RecordView { return s.view }

// Location is the time zone temporal dimensions are derived in.
func (s *Store) Location() *time.Location { return s.loc }

// BuiltAt is the clock reading taken when the store was frozen.
func (s *Store) BuiltAt() time.Time { return s.builtAt }

// Totals returns the record count and the number of records flagged as errors.
func (s *Store) Totals() (records, errors int64) {
	for _, r := range s.records {
		if r.ErrorFlag {
			errors++
		}
	}
	return int64(len(s.records)), errors
}

// Catalog describes the dimensions and measures View exposes.
func (s *Store) Catalog() schema.Config {
	return Catalog()
}
