package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/record"
)

// ============================================================================
// SQLITE ADAPTER
// ============================================================================

// DefaultTable is the table LoadSQLite reads when none is configured.
const DefaultTable = "annotations"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("sqlite: invalid table name %q", table)
	}
	return nil
}

// OpenSQLite opens the database file at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return db, nil
}

// CreateTable creates an annotation table with the canonical columns if it
// does not exist. IDs are not constrained; duplicates are the store's call.
func CreateTable(ctx context.Context, db *sql.DB, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id                 TEXT NOT NULL,
		platform           TEXT NOT NULL DEFAULT '',
		project            TEXT NOT NULL DEFAULT '',
		annotator_id       TEXT NOT NULL DEFAULT '',
		task_id            TEXT DEFAULT '',
		task_type          TEXT NOT NULL DEFAULT '',
		submitted_at       DATETIME,
		quality_score      REAL,
		confidence_score   REAL,
		error_flag         INTEGER NOT NULL DEFAULT 0,
		error_type         TEXT DEFAULT '',
		time_spent_seconds REAL NOT NULL DEFAULT 0,
		experience_days    INTEGER NOT NULL DEFAULT 0,
		training_completed INTEGER NOT NULL DEFAULT 0,
		guideline_version  TEXT DEFAULT '',
		guideline_imputed  INTEGER NOT NULL DEFAULT 0,
		reviewer_id        TEXT DEFAULT '',
		is_reviewed        INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_platform ON %[1]s(platform);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_annotator ON %[1]s(annotator_id);
	`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", table, err)
	}
	return nil
}

// InsertRecords appends recs to table in one transaction.
func InsertRecords(ctx context.Context, db *sql.DB, table string, recs []record.AnnotationRecord) error {
	if err := checkTable(table); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
	INSERT INTO %s (
		id, platform, project, annotator_id, task_id, task_type, submitted_at,
		quality_score, confidence_score, error_flag, error_type,
		time_spent_seconds, experience_days, training_completed,
		guideline_version, guideline_imputed, reviewer_id, is_reviewed
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table))
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		var submitted sql.NullTime
		if !r.SubmittedAt.IsZero() {
			submitted = sql.NullTime{Time: r.SubmittedAt, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Platform, r.Project, r.AnnotatorID, r.TaskID, r.TaskType, submitted,
			nullScore(r.QualityScore), nullScore(r.ConfidenceScore), r.ErrorFlag, r.ErrorType,
			r.TimeSpentSeconds, r.ExperienceDays, r.TrainingCompleted,
			r.GuidelineVersion, r.GuidelineImputed, r.ReviewerID, r.IsReviewed,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert %q: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func nullScore(s record.Score) sql.NullFloat64 {
	return sql.NullFloat64{Float64: s.Value, Valid: s.Valid}
}

// LoadSQLite reads every row of table in insertion order. Columns are matched
// like CSV headers; NULL reads as an empty value.
func LoadSQLite(ctx context.Context, db *sql.DB, table string, opts Options) (Result, error) {
	if err := checkTable(table); err != nil {
		return Result{}, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY rowid`, table))
	if err != nil {
		return Result{}, fmt.Errorf("sqlite: query %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("sqlite: columns: %w", err)
	}
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = canonical(n)
	}

	c := newCollector("sqlite:"+table, opts)
	raw := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			c.malformed(err)
			continue
		}
		values := make(map[string]string, len(cols))
		for i, col := range cols {
			if col != "" && raw[i].Valid {
				values[col] = raw[i].String
			}
		}
		c.add(values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("sqlite: read %s: %w", table, err)
	}
	return c.done(), nil
}
