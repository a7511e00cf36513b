// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records migration runs in a SQLite database: one row per
// run, per processed note, and per artifact. The ledger is an audit trail;
// skip decisions never consult it.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/note-archiver/pkg/types"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrRunNotFound is returned when no run matches an ID.
var ErrRunNotFound = errors.New("run not found")

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path and ensures its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// Notes are recorded from concurrent workers; one connection keeps
	// SQLite writes serialized.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			source_directory TEXT NOT NULL,
			formats TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			candidates INTEGER NOT NULL DEFAULT 0,
			processed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			normalized INTEGER NOT NULL DEFAULT 0,
			already_normalized INTEGER NOT NULL DEFAULT 0,
			converted INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			artifacts_failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			base TEXT NOT NULL,
			title TEXT,
			created TEXT,
			tags TEXT,
			status TEXT NOT NULL,
			fixed_references INTEGER NOT NULL DEFAULT 0,
			pdf_linked INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_run_id ON notes(run_id)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			format TEXT NOT NULL,
			path TEXT,
			status TEXT NOT NULL,
			engine TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_note_id ON artifacts(note_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run is an open ledger entry for one batch invocation.
type Run struct {
	ID    string
	store *Store
}

// BeginRun inserts a running entry for a batch over cfg.
func (s *Store) BeginRun(ctx context.Context, cfg *types.MigrationConfig) (*Run, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source_directory, formats, status) VALUES (?, ?, ?, ?, ?)`,
		id, now(), cfg.SourceDirectory, cfg.OutputFormats, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return &Run{ID: id, store: s}, nil
}

// RecordNote stores one note outcome and its artifacts.
func (r *Run) RecordNote(ctx context.Context, res types.NoteResult) error {
	tags, err := json.Marshal(res.Properties.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	out, err := tx.ExecContext(ctx,
		`INSERT INTO notes (run_id, path, base, title, created, tags, status, fixed_references, pdf_linked, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, res.Path, res.Base, res.Title, res.Properties.Created, string(tags), string(res.Status),
		res.FixedReferences, res.PDFLinked, errText(res.Err), now())
	if err != nil {
		return fmt.Errorf("inserting note %s: %w", res.Base, err)
	}
	noteID, err := out.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading note id: %w", err)
	}

	for _, a := range res.Artifacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (note_id, format, path, status, engine, error) VALUES (?, ?, ?, ?, ?, ?)`,
			noteID, string(a.Format), a.Path, string(a.Status), a.Engine, errText(a.Err)); err != nil {
			return fmt.Errorf("inserting artifact %s: %w", a.Format, err)
		}
	}
	return tx.Commit()
}

// Finish closes the run with the batch counters and the batch error, if any.
func (r *Run) Finish(ctx context.Context, stats types.BatchStats, runErr error) error {
	status := StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}
	_, err := r.store.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ?,
			candidates = ?, processed = ?, failed = ?, normalized = ?, already_normalized = ?,
			converted = ?, skipped = ?, artifacts_failed = ?
		 WHERE id = ?`,
		now(), status, errText(runErr),
		stats.Candidates, stats.Processed, stats.Failed, stats.Normalized, stats.AlreadyNormalized,
		stats.Converted, stats.Skipped, stats.ArtifactsFailed,
		r.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	return nil
}

// RunRecord is a stored run.
type RunRecord struct {
	ID              string           `json:"id" yaml:"id"`
	StartedAt       string           `json:"started_at" yaml:"started_at"`
	FinishedAt      string           `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	SourceDirectory string           `json:"source_directory" yaml:"source_directory"`
	Formats         string           `json:"formats" yaml:"formats"`
	Status          string           `json:"status" yaml:"status"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`
	Stats           types.BatchStats `json:"stats" yaml:"stats"`
}

const runColumns = `id, started_at, COALESCE(finished_at, ''), source_directory, formats, status, COALESCE(error, ''),
	candidates, processed, failed, normalized, already_normalized, converted, skipped, artifacts_failed`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var r RunRecord
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourceDirectory, &r.Formats, &r.Status, &r.Error,
		&r.Stats.Candidates, &r.Stats.Processed, &r.Stats.Failed, &r.Stats.Normalized,
		&r.Stats.AlreadyNormalized, &r.Stats.Converted, &r.Stats.Skipped, &r.Stats.ArtifactsFailed)
	return r, err
}

// Runs returns up to limit runs, most recent first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindRun returns the run whose ID starts with prefix. An empty prefix
// selects the most recent run. A prefix matching several runs is an error.
func (s *Store) FindRun(ctx context.Context, prefix string) (RunRecord, error) {
	if prefix == "" {
		runs, err := s.Runs(ctx, 1)
		if err != nil {
			return RunRecord{}, err
		}
		if len(runs) == 0 {
			return RunRecord{}, ErrRunNotFound
		}
		return runs[0], nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return RunRecord{}, fmt.Errorf("querying run %s: %w", prefix, err)
	}
	defer rows.Close()

	var found []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return RunRecord{}, fmt.Errorf("scanning run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, err
	}
	switch len(found) {
	case 0:
		return RunRecord{}, fmt.Errorf("%s: %w", prefix, ErrRunNotFound)
	case 1:
		return found[0], nil
	default:
		return RunRecord{}, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func errText(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
