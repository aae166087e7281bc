package record

import (
	"fmt"
	"math"
	"time"
)

// Rules holds the context a record is validated against.
type Rules struct {
	KnownErrorTypes map[string]bool
	Now             time.Time
}

// NewRules builds Rules from an error-type list and a reference time.
func NewRules(errorTypes []string, now time.Time) Rules {
	known := make(map[string]bool, len(errorTypes))
	for _, t := range errorTypes {
		known[t] = true
	}
	return Rules{KnownErrorTypes: known, Now: now}
}

// Validate checks every invariant of r and returns one failure per broken
// invariant. Row is left for the caller to fill in.
func Validate(r AnnotationRecord, rules Rules) []*IngestionError {
	var errs []*IngestionError
	fail := func(kind Kind, field, format string, args ...any) {
		errs = append(errs, &IngestionError{
			Kind:     kind,
			RecordID: r.ID,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for _, f := range []struct{ name, value string }{
		{"id", r.ID},
		{"platform", r.Platform},
		{"project", r.Project},
		{"annotator_id", r.AnnotatorID},
		{"task_type", r.TaskType},
	} {
		if f.value == "" {
			fail(MissingRequiredField, f.name, "%s is required", f.name)
		}
	}

	switch {
	case r.SubmittedAt.IsZero():
		fail(InvalidTimestamp, "submitted_at", "timestamp is missing")
	case !rules.Now.IsZero() && r.SubmittedAt.After(rules.Now):
		fail(InvalidTimestamp, "submitted_at", "timestamp %s is after %s", r.SubmittedAt.Format(time.RFC3339), rules.Now.Format(time.RFC3339))
	}

	for _, s := range []struct {
		name  string
		score Score
	}{
		{"quality_score", r.QualityScore},
		{"confidence_score", r.ConfidenceScore},
	} {
		if s.score.Valid && !inUnitInterval(s.score.Value) {
			fail(OutOfRangeScore, s.name, "%s %v is outside [0,1]", s.name, s.score.Value)
		}
	}

	if r.TimeSpentSeconds < 0 || math.IsNaN(r.TimeSpentSeconds) || math.IsInf(r.TimeSpentSeconds, 0) {
		fail(NegativeTimeSpent, "time_spent_seconds", "time spent %v must be a finite value >= 0", r.TimeSpentSeconds)
	}
	if r.ExperienceDays < 0 {
		fail(NegativeExperienceDays, "experience_days", "experience %d must be >= 0", r.ExperienceDays)
	}

	switch {
	case !r.ErrorFlag && r.ErrorType != ErrorTypeNone:
		fail(InconsistentErrorType, "error_type", "error type %q set on a record without an error", r.ErrorType)
	case r.ErrorFlag && r.ErrorType == ErrorTypeNone:
		fail(InconsistentErrorType, "error_type", "record flagged as error has error type %q", ErrorTypeNone)
	case r.ErrorFlag && !rules.KnownErrorTypes[r.ErrorType]:
		fail(InconsistentErrorType, "error_type", "unknown error type %q", r.ErrorType)
	}

	return errs
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
