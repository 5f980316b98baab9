package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		submission_id TEXT,
		status TEXT NOT NULL DEFAULT 'queued',
		current_semester TEXT,
		records TEXT NOT NULL,
		diagnostics TEXT,
		corrections TEXT,
		error TEXT,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// timeLayout keeps a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = `id, submission_id, status, current_semester, records, diagnostics, corrections, error, created_at, started_at, completed_at`

// SQLiteStore persists jobs in a SQLite database file.
type SQLiteStore struct {
	conn   *sql.DB
	logger logger.Logger
	path   string
}

// OpenSQLite opens or creates the jobs database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions("sqlite-store", opts)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open jobs database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize jobs schema: %w", err)
	}

	o.logger.Info(ctx, "opened jobs database", logger.String("path", path))
	s := &SQLiteStore{conn: conn, logger: o.logger, path: path}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateJobsStored(n)
	}
	return s, nil
}

func (s *SQLiteStore) Create(ctx context.Context, job model.Job) error {
	row, err := encodeJob(job)
	if err != nil {
		return err
	}
	var exists int
	err = s.conn.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, job.ID).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDuplicate, job.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check job %s: %w", job.ID, err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, row.submissionID, string(job.Status), row.currentSemester, row.records, row.diagnostics,
		row.corrections, row.errMsg, row.createdAt, row.startedAt, row.completedAt,
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateJobsStored(n)
	}
	s.logger.Debug(ctx, "created job", logger.String("job_id", job.ID))
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, job model.Job) error {
	row, err := encodeJob(job)
	if err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?,
			records = ?,
			diagnostics = ?,
			corrections = ?,
			error = ?,
			started_at = ?,
			completed_at = ?
		WHERE id = ?`,
		string(job.Status), row.records, row.diagnostics, row.corrections, row.errMsg,
		row.startedAt, row.completedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, job.ID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Job, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

type jobRow struct {
	submissionID    sql.NullString
	currentSemester sql.NullString
	records         string
	diagnostics     sql.NullString
	corrections     sql.NullString
	errMsg          sql.NullString
	createdAt       string
	startedAt       sql.NullString
	completedAt     sql.NullString
}

func encodeJob(job model.Job) (jobRow, error) { //nolint:gocritic // copied by value on purpose
	records, err := json.Marshal(job.Records)
	if err != nil {
		return jobRow{}, fmt.Errorf("encode records of job %s: %w", job.ID, err)
	}
	row := jobRow{
		submissionID:    nullString(job.SubmissionID),
		currentSemester: nullString(job.CurrentSemester),
		records:         string(records),
		errMsg:          nullString(job.Error),
		createdAt:       job.CreatedAt.UTC().Format(timeLayout),
		startedAt:       nullTime(job.StartedAt),
		completedAt:     nullTime(job.CompletedAt),
	}
	if job.Diagnostics != nil {
		b, err := json.Marshal(job.Diagnostics)
		if err != nil {
			return jobRow{}, fmt.Errorf("encode diagnostics of job %s: %w", job.ID, err)
		}
		row.diagnostics = nullString(string(b))
	}
	if job.Corrections != nil {
		b, err := json.Marshal(job.Corrections)
		if err != nil {
			return jobRow{}, fmt.Errorf("encode corrections of job %s: %w", job.ID, err)
		}
		row.corrections = nullString(string(b))
	}
	return row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (model.Job, error) {
	var (
		job    model.Job
		row    jobRow
		status string
	)
	err := sc.Scan(&job.ID, &row.submissionID, &status, &row.currentSemester, &row.records,
		&row.diagnostics, &row.corrections, &row.errMsg, &row.createdAt, &row.startedAt, &row.completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job, err
		}
		return job, fmt.Errorf("scan job: %w", err)
	}

	job.SubmissionID = row.submissionID.String
	job.Status = model.JobStatus(status)
	job.CurrentSemester = row.currentSemester.String
	job.Error = row.errMsg.String
	if err := json.Unmarshal([]byte(row.records), &job.Records); err != nil {
		return job, fmt.Errorf("decode records of job %s: %w", job.ID, err)
	}
	if row.diagnostics.Valid {
		if err := json.Unmarshal([]byte(row.diagnostics.String), &job.Diagnostics); err != nil {
			return job, fmt.Errorf("decode diagnostics of job %s: %w", job.ID, err)
		}
	}
	if row.corrections.Valid {
		if err := json.Unmarshal([]byte(row.corrections.String), &job.Corrections); err != nil {
			return job, fmt.Errorf("decode corrections of job %s: %w", job.ID, err)
		}
	}
	if t, err := time.Parse(timeLayout, row.createdAt); err == nil {
		job.CreatedAt = t
	}
	job.StartedAt = parseNullTime(row.startedAt)
	job.CompletedAt = parseNullTime(row.completedAt)
	return job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
