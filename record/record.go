// Package record holds the annotation data model and the frozen Record Store.
//
// Records are validated once by Build and never mutated afterwards; every
// accessor hands out value copies. Downstream packages read the snapshot
// through Store.View, an engine.RecordView exposing raw and bucketed
// dimensions.
package record

import (
	"time"
)

// ErrorTypeNone is the error type of every record whose error flag is false.
const ErrorTypeNone = "none"

// DefaultErrorTypes is the known error-type set used when none is configured.
var DefaultErrorTypes = []string{
	"label_mismatch",
	"boundary_error",
	"missing_annotation",
	"extra_annotation",
	"attribute_error",
	"guideline_violation",
}

// Score is an optional value in [0,1].
type Score struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// ScoreOf returns a present score.
func ScoreOf(v float64) Score { return Score{Value: v, Valid: true} }

// Get returns the score and whether it is present.
func (s Score) Get() (float64, bool) { return s.Value, s.Valid }

// AnnotationRecord is one immutable labeling event.
type AnnotationRecord struct {
	// identity
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	Project     string `json:"project"`
	AnnotatorID string `json:"annotatorId"`
	TaskID      string `json:"taskId,omitempty"`
	TaskType    string `json:"taskType"`

	SubmittedAt time.Time `json:"submittedAt"`

	// quality signals
	QualityScore     Score   `json:"qualityScore"`
	ConfidenceScore  Score   `json:"confidenceScore"`
	ErrorFlag        bool    `json:"errorFlag"`
	ErrorType        string  `json:"errorType"`
	TimeSpentSeconds float64 `json:"timeSpentSeconds"`

	// annotator context
	ExperienceDays    int    `json:"experienceDays"`
	TrainingCompleted bool   `json:"trainingCompleted"`
	GuidelineVersion  string `json:"guidelineVersion"`
	GuidelineImputed  bool   `json:"guidelineImputed"`

	// review context
	ReviewerID string `json:"reviewerId,omitempty"`
	IsReviewed bool   `json:"isReviewed"`
}
