package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

const sample = `ID,Platform,Project,Annotator,Task Type,Timestamp,Quality,Confidence,Error Flag,Error Type,Time Spent,Experience Days,Training Completed,Guideline Version,Reviewer,Reviewed,Notes
r1,A,street,a1,bounding_box,2024-03-04 10:00:00,0.85,,true,label_mismatch,120.5,12,yes,v2,rev-1,1,first
r2,A,street,a2,bounding_box,2024-03-04T11:00:00Z,,0.7,false,,30,12.0,no,,, false,
r3,B,street,a3,polygon,2024-03-05,high,0.5,false,none,10,3,no,v1,,false,
r4,B,street
`

func TestParseCSV(t *testing.T) {
	res, err := ParseCSV(strings.NewReader(sample), Options{DefaultGuideline: "v1"})
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Source)
	assert.Equal(t, 4, res.Rows)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, []int{1, 2}, res.SourceRows)

	r1 := res.Candidates[0]
	assert.Equal(t, "r1", r1.ID)
	assert.Equal(t, "a1", r1.AnnotatorID)
	assert.Equal(t, "bounding_box", r1.TaskType)
	assert.True(t, r1.SubmittedAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, record.ScoreOf(0.85), r1.QualityScore)
	assert.False(t, r1.ConfidenceScore.Valid)
	assert.True(t, r1.ErrorFlag)
	assert.Equal(t, "label_mismatch", r1.ErrorType)
	assert.Equal(t, 120.5, r1.TimeSpentSeconds)
	assert.Equal(t, 12, r1.ExperienceDays)
	assert.True(t, r1.TrainingCompleted)
	assert.Equal(t, "v2", r1.GuidelineVersion)
	assert.False(t, r1.GuidelineImputed)
	assert.Equal(t, "rev-1", r1.ReviewerID)
	assert.True(t, r1.IsReviewed)

	r2 := res.Candidates[1]
	assert.False(t, r2.QualityScore.Valid)
	assert.Equal(t, record.ScoreOf(0.7), r2.ConfidenceScore)
	assert.Equal(t, 12, r2.ExperienceDays)
	assert.Equal(t, "v1", r2.GuidelineVersion)
	assert.True(t, r2.GuidelineImputed)
	assert.False(t, r2.IsReviewed)

	require.Len(t, res.Failures, 2)
	bad := res.Failures[0]
	assert.ErrorIs(t, bad, record.ErrMalformedField)
	assert.Equal(t, "r3", bad.RecordID)
	assert.Equal(t, 3, bad.Row)
	assert.Equal(t, ColQualityScore, bad.Field)

	short := res.Failures[1]
	assert.ErrorIs(t, short, record.ErrMalformedField)
	assert.Equal(t, 4, short.Row)
}

func TestParseCSVFeedsBuild(t *testing.T) {
	res, err := ParseCSV(strings.NewReader(sample), Options{})
	require.NoError(t, err)

	store, rejected, err := record.Build(res.Candidates,
		record.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, record.ErrorTypeNone, store.At(1).ErrorType)
}

func TestParseCSVLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	in := "id,submitted_at\nr1,2024-03-04 10:00:00\nr2,2024-03-04T10:00:00Z\n"

	res, err := ParseCSV(strings.NewReader(in), Options{Location: jst})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.True(t, res.Candidates[0].SubmittedAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, jst)), "zoneless timestamps use the configured location")
	assert.True(t, res.Candidates[1].SubmittedAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)), "explicit zones win")
}

func TestParseCSVMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		col   string
		value string
	}{
		{"timestamp", ColSubmittedAt, "yesterday"},
		{"score", ColConfidenceScore, "0.5.1"},
		{"flag", ColErrorFlag, "maybe"},
		{"fractional days", ColExperienceDays, "1.5"},
		{"time spent", ColTimeSpentSeconds, "slow"},
		{"infinite time spent", ColTimeSpentSeconds, "inf"},
		{"nan score", ColQualityScore, "NaN"},
		{"huge days", ColExperienceDays, "1e30"},
		{"infinite days", ColExperienceDays, "-Inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "id," + tt.col + "\nr1," + tt.value + "\n"
			res, err := ParseCSV(strings.NewReader(in), Options{})
			require.NoError(t, err)
			assert.Empty(t, res.Candidates)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, tt.col, res.Failures[0].Field)
			assert.Equal(t, "r1", res.Failures[0].RecordID)
		})
	}
}

func TestParseCSVHeaderErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), Options{})
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("foo,bar\n1,2\n"), Options{})
	assert.ErrorContains(t, err, "no recognized columns")
}

func TestParseCSVSeparator(t *testing.T) {
	res, err := ParseCSV(strings.NewReader("id;platform\nr1;A\n"), Options{Comma: ';'})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "A", res.Candidates[0].Platform)
}

func testRecords() []record.AnnotationRecord {
	return []record.AnnotationRecord{
		{
			ID: "r1", Platform: "A", Project: "street", AnnotatorID: "a1", TaskID: "t1", TaskType: "bounding_box",
			SubmittedAt:  time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
			QualityScore: record.ScoreOf(0.85), ErrorFlag: true, ErrorType: "label_mismatch",
			TimeSpentSeconds: 120.5, ExperienceDays: 12, TrainingCompleted: true,
			GuidelineVersion: "v2", ReviewerID: "rev-1", IsReviewed: true,
		},
		{
			ID: "r2", Platform: "B", Project: "street", AnnotatorID: "a2", TaskType: "polygon",
			SubmittedAt:     time.Date(2024, 3, 5, 16, 30, 0, 0, time.UTC),
			ConfidenceScore: record.ScoreOf(0.4), ErrorType: record.ErrorTypeNone,
			TimeSpentSeconds: 30, GuidelineVersion: "v1", GuidelineImputed: true,
		},
	}
}

// assertSameRecords compares timestamps by instant and everything else exactly.
func assertSameRecords(t *testing.T, want, got []record.AnnotationRecord) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].SubmittedAt.Equal(got[i].SubmittedAt), want[i].ID)
		w, g := want[i], got[i]
		w.SubmittedAt, g.SubmittedAt = time.Time{}, time.Time{}
		assert.Equal(t, w, g)
	}
}

func TestWriteCSVReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))

	res, err := ParseCSV(&buf, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assertSameRecords(t, testRecords(), res.Candidates)
}

// ============================================================================
// SQLITE
// ============================================================================

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "annostat-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, CreateTable(context.Background(), db, DefaultTable))
	return db
}

func TestLoadSQLite(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, InsertRecords(ctx, db, DefaultTable, testRecords()))

	res, err := LoadSQLite(ctx, db, DefaultTable, Options{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite:annotations", res.Source)
	assert.Equal(t, 2, res.Rows)
	assert.Empty(t, res.Failures)
	assertSameRecords(t, testRecords(), res.Candidates)
}

func TestLoadSQLiteMalformedRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, InsertRecords(ctx, db, DefaultTable, testRecords()))
	_, err := db.ExecContext(ctx, `UPDATE annotations SET quality_score = 'n/a' WHERE id = 'r2'`)
	require.NoError(t, err)

	res, err := LoadSQLite(ctx, db, DefaultTable, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "r2", res.Failures[0].RecordID)
	assert.Equal(t, 2, res.Failures[0].Row)
	assert.Equal(t, ColQualityScore, res.Failures[0].Field)
}

func TestLoadSQLiteTableName(t *testing.T) {
	db := newTestDB(t)
	_, err := LoadSQLite(context.Background(), db, "annotations; DROP TABLE annotations", Options{})
	assert.ErrorContains(t, err, "invalid table name")

	_, err = LoadSQLite(context.Background(), db, "missing", Options{})
	assert.Error(t, err)
}

// ============================================================================
// LOAD
// ============================================================================

func TestLoadByExtension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "batch.csv")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))
	require.NoError(t, os.WriteFile(csvPath, buf.Bytes(), 0o600))

	res, err := Load(ctx, csvPath, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, csvPath, res.Source)
	assert.Len(t, res.Candidates, 2)

	dbPath := filepath.Join(dir, "batch.sqlite")
	db, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, CreateTable(ctx, db, DefaultTable))
	require.NoError(t, InsertRecords(ctx, db, DefaultTable, testRecords()))
	require.NoError(t, db.Close())

	res, err = Load(ctx, dbPath, "", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)

	_, err = Load(ctx, filepath.Join(dir, "batch.json"), "", Options{})
	assert.ErrorContains(t, err, "unsupported input")

	_, err = Load(ctx, filepath.Join(dir, "absent.db"), "", Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
