// Package store persists build results in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/waabox/ontoloci/internal/domain"
)

// SQLite implements domain.BuildResultStore.
type SQLite struct {
	conn *sql.DB
	path string
}

// Ensure SQLite implements domain.BuildResultStore.
var _ domain.BuildResultStore = (*SQLite)(nil)

// Open opens the database at path, creating parent directories, and applies
// pending migrations.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &SQLite{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) migrate() error {
	if _, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1BuildResults},
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1BuildResults = `
CREATE TABLE IF NOT EXISTS build_results (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	commit_sha TEXT NOT NULL,
	check_run_id TEXT NOT NULL DEFAULT '',
	exceptions INTEGER NOT NULL DEFAULT 0,
	check_title TEXT NOT NULL DEFAULT '',
	extra TEXT,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_build_results_repo ON build_results(owner, repo);
CREATE INDEX IF NOT EXISTS idx_build_results_started_at ON build_results(started_at);

CREATE TABLE IF NOT EXISTS test_case_results (
	build_id TEXT NOT NULL REFERENCES build_results(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	computed TEXT NOT NULL DEFAULT '',
	expected TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (build_id, position)
);
`

// Save stores result, replacing any result with the same id.
func (s *SQLite) Save(ctx context.Context, result domain.BuildResult) error {
	var extra []byte
	if len(result.Metadata.Extra) > 0 {
		var err error
		if extra, err = json.Marshal(result.Metadata.Extra); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	m := result.Metadata
	for _, stmt := range []string{
		`DELETE FROM test_case_results WHERE build_id = ?`,
		`DELETE FROM build_results WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, result.ID); err != nil {
			return fmt.Errorf("replace build result %s: %w", result.ID, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO build_results
			(id, owner, repo, commit_sha, check_run_id, exceptions, check_title, extra, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, m.Owner, m.Repo, m.Commit, m.CheckRunID, m.Exceptions, string(m.CheckTitle),
		nullString(extra), string(result.Status), formatTime(result.StartedAt), formatTime(result.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert build result %s: %w", result.ID, err)
	}

	for i, tc := range result.TestCaseResults {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO test_case_results (build_id, position, name, status, computed, expected, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, tc.Name, string(tc.Status), tc.Computed, tc.Expected, int64(tc.Duration))
		if err != nil {
			return fmt.Errorf("insert test case result %s/%d: %w", result.ID, i, err)
		}
	}
	return tx.Commit()
}

// FindAll returns every stored result, most recent first.
func (s *SQLite) FindAll(ctx context.Context) ([]domain.BuildResult, error) {
	rows, err := s.conn.QueryContext(ctx, selectBuilds+` ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query build results: %w", err)
	}
	defer rows.Close()

	var results []domain.BuildResult
	for rows.Next() {
		r, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build results: %w", err)
	}
	for i := range results {
		if results[i].TestCaseResults, err = s.testCases(ctx, results[i].ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FindByID returns the result with id. The boolean is false when none exists.
func (s *SQLite) FindByID(ctx context.Context, id string) (domain.BuildResult, bool, error) {
	r, err := scanBuild(s.conn.QueryRowContext(ctx, selectBuilds+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BuildResult{}, false, nil
	}
	if err != nil {
		return domain.BuildResult{}, false, err
	}
	if r.TestCaseResults, err = s.testCases(ctx, id); err != nil {
		return domain.BuildResult{}, false, err
	}
	return r, true, nil
}

const selectBuilds = `
	SELECT id, owner, repo, commit_sha, check_run_id, exceptions, check_title, extra, status, started_at, finished_at
	FROM build_results`

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (domain.BuildResult, error) {
	var (
		r                 domain.BuildResult
		title, status     string
		extra             sql.NullString
		started, finished string
	)
	err := row.Scan(&r.ID, &r.Metadata.Owner, &r.Metadata.Repo, &r.Metadata.Commit, &r.Metadata.CheckRunID,
		&r.Metadata.Exceptions, &title, &extra, &status, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("scan build result: %w", err)
	}
	r.Metadata.CheckTitle = domain.CheckTitle(title)
	r.Status = domain.BuildStatus(status)
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &r.Metadata.Extra); err != nil {
			return r, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return r, fmt.Errorf("started_at of %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return r, fmt.Errorf("finished_at of %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *SQLite) testCases(ctx context.Context, buildID string) ([]domain.TestCaseResult, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT name, status, computed, expected, duration_ns
		FROM test_case_results WHERE build_id = ? ORDER BY position`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query test case results of %s: %w", buildID, err)
	}
	defer rows.Close()

	var out []domain.TestCaseResult
	for rows.Next() {
		var (
			tc       domain.TestCaseResult
			status   string
			duration int64
		)
		if err := rows.Scan(&tc.Name, &status, &tc.Computed, &tc.Expected, &duration); err != nil {
			return nil, fmt.Errorf("scan test case result: %w", err)
		}
		tc.Status = domain.TestCaseStatus(status)
		tc.Duration = time.Duration(duration)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: b != nil}
}
