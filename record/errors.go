package record

import (
	"fmt"
)

// Kind classifies an ingestion failure.
type Kind string

const (
	MissingRequiredField   Kind = "missing_required_field"
	OutOfRangeScore        Kind = "out_of_range_score"
	NegativeExperienceDays Kind = "negative_experience_days"
	InconsistentErrorType  Kind = "inconsistent_error_type"
	InvalidTimestamp       Kind = "invalid_timestamp"
	NegativeTimeSpent      Kind = "negative_time_spent"
	DuplicateRecordID      Kind = "duplicate_record_id"
	// MalformedField is reported by ingestion adapters for values they cannot parse.
	MalformedField Kind = "malformed_field"
)

// IngestionError describes why one candidate record was rejected.
type IngestionError struct {
	Kind     Kind   `json:"kind"`
	RecordID string `json:"recordId,omitempty"`
	Row      int    `json:"row,omitempty"` // 1-based position in the input, 0 if unknown
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (e *IngestionError) Error() string {
	where := e.RecordID
	if where == "" {
		where = fmt.Sprintf("row %d", e.Row)
	} else {
		where = fmt.Sprintf("record %q", where)
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Message)
}

// Is matches any IngestionError of the same kind.
func (e *IngestionError) Is(target error) bool {
	t, ok := target.(*IngestionError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMissingRequiredField   = &IngestionError{Kind: MissingRequiredField}
	ErrOutOfRangeScore        = &IngestionError{Kind: OutOfRangeScore}
	ErrNegativeExperienceDays = &IngestionError{Kind: NegativeExperienceDays}
	ErrInconsistentErrorType  = &IngestionError{Kind: InconsistentErrorType}
	ErrInvalidTimestamp       = &IngestionError{Kind: InvalidTimestamp}
	ErrNegativeTimeSpent      = &IngestionError{Kind: NegativeTimeSpent}
	ErrDuplicateRecordID      = &IngestionError{Kind: DuplicateRecordID}
	ErrMalformedField         = &IngestionError{Kind: MalformedField}
)

// BuildError aborts a strict build. It carries every failure found.
type BuildError struct {
	Failures []*IngestionError
}

func (e *BuildError) Error() string {
	if len(e.Failures) == 0 {
		return "record store build aborted"
	}
	return fmt.Sprintf("record store build aborted: %d invalid records, first: %v", len(e.Failures), e.Failures[0])
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
