// Package sqlite provides a SQLite-backed run journal.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quillstack-labs/pagelift/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
)

// Ensure Journal implements the interface.
var _ driven.RunJournal = (*Journal)(nil)

// Journal records completed pipeline runs in a SQLite database.
type Journal struct {
	db   *sql.DB
	path string
}

// NewJournal opens (or creates) the journal database in the given data
// directory.
func NewJournal(dataDir string) (*Journal, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("journal: data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "journal.db")

	// WAL mode for concurrent readers while runs are being recorded.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	j := &Journal{db: db, path: dbPath}
	if err := j.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Record persists a run record.
func (j *Journal) Record(ctx context.Context, rec domain.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("journal: run ID is required")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, filename, engine_id, status, pages_total, pages_failed, duration_ms, sha256, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Filename, rec.EngineID, string(rec.Status),
		rec.PagesTotal, rec.PagesFailed, rec.Duration.Milliseconds(),
		rec.SHA256, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, filename, engine_id, status, pages_total, pages_failed, duration_ms, sha256, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return records, nil
}

// Get returns a single record by run ID.
func (j *Journal) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, filename, engine_id, status, pages_total, pages_failed, duration_ms, sha256, created_at
		FROM runs
		WHERE id = ?
	`, runID)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (domain.RunRecord, error) {
	var (
		rec        domain.RunRecord
		status     string
		durationMS int64
	)
	err := row.Scan(&rec.ID, &rec.Filename, &rec.EngineID, &status,
		&rec.PagesTotal, &rec.PagesFailed, &durationMS, &rec.SHA256, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning run: %w", err)
	}
	rec.Status = domain.RunStatus(status)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

func (j *Journal) migrate(fsys embed.FS) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := j.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := j.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := j.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("marking migration %s applied: %w", name, err)
		}
	}
	return nil
}
