// Package ingest turns external sources into candidate annotation records.
//
// Adapters only parse. Values they cannot read are reported as
// record.MalformedField failures and the row is dropped; everything else is
// handed to record.Build, which owns validation.
package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/logging"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

// Options controls how raw values are decoded.
type Options struct {
	// Location interprets timestamps that carry no zone. Default UTC.
	Location *time.Location
	// DefaultGuideline fills a missing guideline version and marks the record
	// as imputed. Empty leaves the version blank.
	DefaultGuideline string
	// Comma is the CSV field separator. Default ','.
	Comma rune
	Logger *logging.Logger
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Result is what an adapter read from one source.
type Result struct {
	Source     string                    `json:"source"`
	Rows       int                       `json:"rows"`
	Candidates []record.AnnotationRecord `json:"-"`
	SourceRows []int                     `json:"-"` // input row of each candidate
	Failures   []*record.IngestionError  `json:"failures,omitempty"`
}

// ============================================================================
// COLUMNS
// ============================================================================

// Canonical column names. Sources may use any casing, spaces or dashes.
const (
	ColID                = "id"
	ColPlatform          = "platform"
	ColProject           = "project"
	ColAnnotatorID       = "annotator_id"
	ColTaskID            = "task_id"
	ColTaskType          = "task_type"
	ColSubmittedAt       = "submitted_at"
	ColQualityScore      = "quality_score"
	ColConfidenceScore   = "confidence_score"
	ColErrorFlag         = "error_flag"
	ColErrorType         = "error_type"
	ColTimeSpentSeconds  = "time_spent_seconds"
	ColExperienceDays    = "experience_days"
	ColTrainingCompleted = "training_completed"
	ColGuidelineVersion  = "guideline_version"
	ColGuidelineImputed  = "guideline_imputed"
	ColReviewerID        = "reviewer_id"
	ColIsReviewed        = "is_reviewed"
)

// Columns lists the canonical columns in the order writers emit them.
var Columns = []string{
	ColID, ColPlatform, ColProject, ColAnnotatorID, ColTaskID, ColTaskType,
	ColSubmittedAt, ColQualityScore, ColConfidenceScore, ColErrorFlag,
	ColErrorType, ColTimeSpentSeconds, ColExperienceDays, ColTrainingCompleted,
	ColGuidelineVersion, ColGuidelineImputed, ColReviewerID, ColIsReviewed,
}

var aliases = map[string]string{
	"record_id":     ColID,
	"annotation_id": ColID,
	"annotator":     ColAnnotatorID,
	"task":          ColTaskID,
	"timestamp":     ColSubmittedAt,
	"created_at":    ColSubmittedAt,
	"quality":       ColQualityScore,
	"confidence":    ColConfidenceScore,
	"has_error":     ColErrorFlag,
	"time_spent":    ColTimeSpentSeconds,
	"experience":    ColExperienceDays,
	"trained":       ColTrainingCompleted,
	"guideline":     ColGuidelineVersion,
	"reviewer":      ColReviewerID,
	"reviewed":      ColIsReviewed,
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// canonical maps a source header to a canonical column, or "" if unmapped.
func canonical(header string) string {
	key := toSnakeCase(strings.TrimSpace(header))
	if a, ok := aliases[key]; ok {
		return a
	}
	if known[key] {
		return key
	}
	return ""
}

// toSnakeCase converts "Column Name" → "column_name".
func toSnakeCase(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// ============================================================================
// DECODING
// ============================================================================

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "no", "n":
		return false, nil
	case "yes", "y":
		return true, nil
	}
	return strconv.ParseBool(s)
}

// maxDays bounds day counts read as floats so the int conversion cannot overflow.
const maxDays = math.MaxInt32

// parseDays accepts integers and integral floats ("12.0").
func parseDays(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number of days: %q", s)
	}
	if f > maxDays || f < -maxDays {
		return 0, fmt.Errorf("days out of range: %q", s)
	}
	return int(f), nil
}

// decoder builds one candidate from a row of canonical values, collecting a
// MalformedField failure for every value it cannot parse.
type decoder struct {
	row      int
	id       string
	failures []*record.IngestionError
}

func (d *decoder) fail(field string, err error) {
	d.failures = append(d.failures, &record.IngestionError{
		Kind:     record.MalformedField,
		RecordID: d.id,
		Row:      d.row,
		Field:    field,
		Message:  err.Error(),
	})
}

func (d *decoder) float(field, s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		d.fail(field, fmt.Errorf("not a finite number: %q", s))
		return 0
	}
	return f
}

func (d *decoder) score(field, s string) record.Score {
	if s == "" {
		return record.Score{}
	}
	return record.ScoreOf(d.float(field, s))
}

func (d *decoder) flag(field, s string) bool {
	b, err := parseBool(s)
	if err != nil {
		d.fail(field, fmt.Errorf("not a boolean: %q", s))
	}
	return b
}

func decode(values map[string]string, row int, opts Options) (record.AnnotationRecord, []*record.IngestionError) {
	get := func(col string) string { return strings.TrimSpace(values[col]) }
	d := &decoder{row: row, id: get(ColID)}

	r := record.AnnotationRecord{
		ID:                d.id,
		Platform:          get(ColPlatform),
		Project:           get(ColProject),
		AnnotatorID:       get(ColAnnotatorID),
		TaskID:            get(ColTaskID),
		TaskType:          get(ColTaskType),
		QualityScore:      d.score(ColQualityScore, get(ColQualityScore)),
		ConfidenceScore:   d.score(ColConfidenceScore, get(ColConfidenceScore)),
		ErrorFlag:         d.flag(ColErrorFlag, get(ColErrorFlag)),
		ErrorType:         get(ColErrorType),
		TimeSpentSeconds:  d.float(ColTimeSpentSeconds, get(ColTimeSpentSeconds)),
		TrainingCompleted: d.flag(ColTrainingCompleted, get(ColTrainingCompleted)),
		GuidelineVersion:  get(ColGuidelineVersion),
		GuidelineImputed:  d.flag(ColGuidelineImputed, get(ColGuidelineImputed)),
		ReviewerID:        get(ColReviewerID),
		IsReviewed:        d.flag(ColIsReviewed, get(ColIsReviewed)),
	}

	if s := get(ColSubmittedAt); s != "" {
		t, err := parseTime(s, opts.location())
		if err != nil {
			d.fail(ColSubmittedAt, err)
		}
		r.SubmittedAt = t
	}
	if s := get(ColExperienceDays); s != "" {
		n, err := parseDays(s)
		if err != nil {
			d.fail(ColExperienceDays, err)
		}
		r.ExperienceDays = n
	}
	if r.GuidelineVersion == "" && opts.DefaultGuideline != "" {
		r.GuidelineVersion = opts.DefaultGuideline
		r.GuidelineImputed = true
	}
	return r, d.failures
}

// collector accumulates decoded rows for one source.
type collector struct {
	res  Result
	opts Options
}

func newCollector(source string, opts Options) *collector {
	return &collector{
		res:  Result{Source: source, Candidates: []record.AnnotationRecord{}},
		opts: opts,
	}
}

func (c *collector) add(values map[string]string) {
	c.res.Rows++
	r, failures := decode(values, c.res.Rows, c.opts)
	if len(failures) > 0 {
		c.res.Failures = append(c.res.Failures, failures...)
		return
	}
	c.res.Candidates = append(c.res.Candidates, r)
	c.res.SourceRows = append(c.res.SourceRows, c.res.Rows)
}

func (c *collector) malformed(err error) {
	c.res.Rows++
	c.res.Failures = append(c.res.Failures, &record.IngestionError{
		Kind:    record.MalformedField,
		Row:     c.res.Rows,
		Message: err.Error(),
	})
}

func (c *collector) done() Result {
	logging.OrNop(c.opts.Logger).Info("source read",
		"source", c.res.Source,
		"rows", c.res.Rows,
		"candidates", len(c.res.Candidates),
		"malformed", len(c.res.Failures),
	)
	return c.res
}

// encode renders r as canonical column values, in Columns order.
func encode(r record.AnnotationRecord) []string {
	score := func(s record.Score) string {
		if !s.Valid {
			return ""
		}
		return strconv.FormatFloat(s.Value, 'f', -1, 64)
	}
	submitted := ""
	if !r.SubmittedAt.IsZero() {
		submitted = r.SubmittedAt.Format(time.RFC3339)
	}
	return []string{
		r.ID, r.Platform, r.Project, r.AnnotatorID, r.TaskID, r.TaskType,
		submitted,
		score(r.QualityScore),
		score(r.ConfidenceScore),
		strconv.FormatBool(r.ErrorFlag),
		r.ErrorType,
		strconv.FormatFloat(r.TimeSpentSeconds, 'f', -1, 64),
		strconv.Itoa(r.ExperienceDays),
		strconv.FormatBool(r.TrainingCompleted),
		r.GuidelineVersion,
		strconv.FormatBool(r.GuidelineImputed),
		r.ReviewerID,
		strconv.FormatBool(r.IsReviewed),
	}
}
