// Package storage is the sqlite persistence layer: the run journal, the
// artifact snapshots served by the feed, and a local budget_records table
// usable as a remote store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bms/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a snapshot kind has never been written.
var ErrNotFound = errors.New("not found")

// Run outcome values.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Snapshot kinds.
const (
	SnapshotItems   = "budget_data"
	SnapshotSummary = "summary"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type (
	// Run is one journaled sync or export.
	Run struct {
		ID         string    `json:"id"`
		Trigger    string    `json:"trigger"`
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`
		Records    int       `json:"records"`
		Skipped    int       `json:"skipped"`
		Updated    int       `json:"updated"`
		Created    int       `json:"created"`
		Errors     int       `json:"errors"`
		Partial    bool      `json:"partial_index"`
		Status     string    `json:"status"`
		Failed     []string  `json:"failed,omitempty"`
	}

	// Snapshot is a stored JSON artifact.
	Snapshot struct {
		Kind      string
		RunID     string
		Payload   []byte
		CreatedAt time.Time
	}
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Debug("Database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRun inserts or replaces a run row.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run Run) error {
	failed, err := json.Marshal(nonNil(run.Failed))
	if err != nil {
		return fmt.Errorf("encode failed items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, source, started_at, finished_at, records, skipped, updated, created, errors, partial, status, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Records, run.Skipped, run.Updated, run.Created, run.Errors,
		boolToInt(run.Partial), run.Status, string(failed))
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	r.logger.DebugContext(ctx, "Run saved", log.FieldRunID, run.ID, log.FieldStatus, run.Status)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, records, skipped, updated, created, errors, partial, status, failed
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			partial           int
			failed            string
		)
		if err := rows.Scan(&run.ID, &run.Trigger, &started, &finished,
			&run.Records, &run.Skipped, &run.Updated, &run.Created, &run.Errors,
			&partial, &run.Status, &failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(timeLayout, started)
		run.FinishedAt, _ = time.Parse(timeLayout, finished)
		run.Partial = partial != 0
		if err := json.Unmarshal([]byte(failed), &run.Failed); err != nil {
			return nil, fmt.Errorf("decode failed items of run %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SaveSnapshot appends an artifact payload of the given kind.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s Snapshot) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (kind, run_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		s.Kind, s.RunID, string(s.Payload), s.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", s.Kind, err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of kind, or ErrNotFound.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, kind string) (Snapshot, error) {
	var (
		s       Snapshot
		payload string
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT kind, run_id, payload, created_at FROM snapshots WHERE kind = ? ORDER BY id DESC LIMIT 1`,
		kind).Scan(&s.Kind, &s.RunID, &payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%s snapshot: %w", kind, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest %s snapshot: %w", kind, err)
	}
	s.Payload = []byte(payload)
	s.CreatedAt, _ = time.Parse(timeLayout, created)
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
