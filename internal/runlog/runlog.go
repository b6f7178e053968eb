// Package runlog keeps a local SQLite ledger of processing runs so that
// background work started over HTTP can be inspected afterwards.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Trigger says what started a run.
type Trigger string

const (
	TriggerHTTP    Trigger = "http"
	TriggerNext    Trigger = "next"
	TriggerChecker Trigger = "checker"
)

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// Run is one processing attempt of a chapter.
type Run struct {
	ID               string     `json:"id"`
	Trigger          Trigger    `json:"trigger"`
	Group            string     `json:"group"`
	MangaID          string     `json:"mangaId"`
	ChapterID        string     `json:"chapterId"`
	Status           Status     `json:"status"`
	TotalImages      int        `json:"totalImages"`
	SuccessfulImages int        `json:"successfulImages"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// Outcome is how a run ended.
type Outcome struct {
	Status           Status
	TotalImages      int
	SuccessfulImages int
	Error            string
}

// Filter narrows List.
type Filter struct {
	Status  Status
	MangaID string
	Limit   int
}

// Log is the run ledger.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	l := &Log{db: db, now: time.Now}
	if err := l.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL,
		group_name TEXT NOT NULL,
		manga_id TEXT NOT NULL,
		chapter_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('running','completed','partial','skipped','failed')),
		total_images INTEGER NOT NULL DEFAULT 0,
		successful_images INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_manga_status ON runs(manga_id, status);
	`
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create run log schema: %w", err)
	}
	return nil
}

// Start records a new running run. An empty ID gets a fresh UUID and a zero
// StartedAt is set to now. The stored run is returned.
func (l *Log) Start(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = l.now()
	}
	run.Status = StatusRunning
	run.FinishedAt = nil

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_trigger, group_name, manga_id, chapter_id, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Trigger), run.Group, run.MangaID, run.ChapterID,
		string(run.Status), run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return &run, nil
}

// Finish records the outcome of a run.
func (l *Log) Finish(ctx context.Context, id string, out Outcome) error {
	if out.Status == "" || out.Status == StatusRunning {
		return fmt.Errorf("invalid final status %q for run %s", out.Status, id)
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total_images = ?, successful_images = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(out.Status), out.TotalImages, out.SuccessfulImages, out.Error, l.now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectRun = `SELECT id, run_trigger, group_name, manga_id, chapter_id, status, total_images,
	successful_images, error, started_at, finished_at FROM runs`

// Get returns one run.
func (l *Log) Get(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MangaID != "" {
		where = append(where, "manga_id = ?")
		args = append(args, f.MangaID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := selectRun
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run             Run
		trigger, status string
		started         int64
		finished        sql.NullInt64
	)
	if err := s.Scan(&run.ID, &trigger, &run.Group, &run.MangaID, &run.ChapterID, &status,
		&run.TotalImages, &run.SuccessfulImages, &run.Error, &started, &finished); err != nil {
		return nil, err
	}
	run.Trigger = Trigger(trigger)
	run.Status = Status(status)
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}
