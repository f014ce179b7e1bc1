// Package services runs the pipeline: sheet grid to canonical records,
// reconciliation against the remote store, and the dashboard artifacts
// derived from the result.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bms/internal/core"
	"bms/internal/dashboard"
	"bms/internal/log"
	"bms/internal/notify"
	"bms/internal/remote"
	"bms/internal/sheets"
	"bms/internal/storage"
)

// Journal persists run history and artifact snapshots.
// *storage.SQLiteRepository implements it.
type Journal interface {
	SaveRun(ctx context.Context, run storage.Run) error
	SaveSnapshot(ctx context.Context, s storage.Snapshot) error
}

// SyncConfig holds configuration for the sync service
type SyncConfig struct {
	Layout     sheets.Layout
	PageSize   int
	Deadline   time.Time
	Reconciler ReconcilerConfig
}

// DefaultSyncConfig returns sensible defaults
func DefaultSyncConfig() SyncConfig {
	loc := SeoulLocation()
	return SyncConfig{
		Layout:     sheets.DefaultLayout(),
		PageSize:   remote.DefaultPageSize,
		Deadline:   time.Date(2026, 12, 31, 0, 0, 0, 0, loc),
		Reconciler: DefaultReconcilerConfig(),
	}
}

// RunResult describes one finished run.
type RunResult struct {
	RunID        string
	Trigger      string
	Scan         sheets.ScanReport
	Stats        core.SyncStats
	PartialIndex bool
	Outcomes     []Outcome
	Summary      core.Summary
	Artifacts    dashboard.Artifacts
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Failed reports whether any record failed to sync.
func (r RunResult) Failed() bool {
	return r.Stats.HasErrors()
}

// SyncService performs full sheet to store runs.
type SyncService struct {
	source     sheets.GridReader
	store      remote.Store
	journal    Journal
	notifier   notify.Notifier
	reconciler *Reconciler
	config     SyncConfig
	logger     *log.Logger
	now        func() time.Time
}

// NewSyncService wires a sync service. journal and notifier may be nil.
func NewSyncService(source sheets.GridReader, store remote.Store, journal Journal, notifier notify.Notifier, config SyncConfig, logger *log.Logger) *SyncService {
	if logger == nil {
		logger = log.Discard()
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &SyncService{
		source:     source,
		store:      store,
		journal:    journal,
		notifier:   notifier,
		reconciler: NewReconciler(store, config.Reconciler, logger),
		config:     config,
		logger:     logger.WithComponent(log.ComponentSync),
		now:        time.Now,
	}
}

// Run executes the pipeline once. Only an unreadable source is fatal;
// per-record failures are reported through RunResult.Stats.
func (s *SyncService) Run(ctx context.Context, trigger string) (RunResult, error) {
	res := RunResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	logger := s.logger.With(log.NewFields().WithRun(res.RunID, trigger).ToSlice()...)
	logger.InfoContext(ctx, "Sync run started")

	grid, err := s.source.ReadGrid(ctx)
	if err != nil {
		res.FinishedAt = s.now()
		s.saveRun(ctx, logger, res, 0, true)
		return res, fmt.Errorf("read source grid: %w", err)
	}

	records, report := sheets.Parse(ctx, grid, s.config.Layout, logger)
	res.Scan = report

	ix := remote.BuildIndex(ctx, s.store, s.config.PageSize, logger)
	res.PartialIndex = ix.Partial

	s.reconciler.now = s.now
	res.Outcomes, res.Stats = s.reconciler.Reconcile(ctx, records, ix)

	lines := make([]dashboard.Line, 0, len(res.Outcomes))
	synced := make([]core.Record, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		lines = append(lines, dashboard.Line{ID: o.RemoteID, Record: o.Record})
		synced = append(synced, o.Record)
	}
	res.FinishedAt = s.now()
	res.Summary = core.Summarize(synced, s.config.Deadline, res.FinishedAt.In(s.config.Reconciler.location()))
	res.Artifacts = dashboard.Build(lines, res.Summary)

	s.saveRun(ctx, logger, res, len(records), false)
	s.saveSnapshots(ctx, logger, res.RunID, res.Artifacts)

	if err := s.notifier.NotifyRun(ctx, notify.Report{
		RunID:      res.RunID,
		Trigger:    trigger,
		Stats:      res.Stats,
		Partial:    res.PartialIndex,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    res.Summary,
	}); err != nil {
		logger.WarnContext(ctx, "Run notification failed", log.FieldError, err.Error())
	}

	logger.InfoContext(ctx, "Sync run finished",
		log.NewFields().WithStats(res.Stats.Updated, res.Stats.Created, res.Stats.Errors).ToSlice()...)
	return res, nil
}

func (s *SyncService) saveRun(ctx context.Context, logger *log.Logger, res RunResult, records int, fatal bool) {
	if s.journal == nil {
		return
	}
	status := storage.RunSucceeded
	if fatal || res.Failed() {
		status = storage.RunFailed
	}
	run := storage.Run{
		ID:         res.RunID,
		Trigger:    res.Trigger,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Records:    records,
		Skipped:    res.Scan.Skipped,
		Updated:    res.Stats.Updated,
		Created:    res.Stats.Created,
		Errors:     res.Stats.Errors,
		Partial:    res.PartialIndex,
		Status:     status,
		Failed:     res.Stats.Failed,
	}
	if err := s.journal.SaveRun(ctx, run); err != nil {
		logger.WarnContext(ctx, "Failed to journal run", log.FieldError, err.Error())
	}
}

func saveSnapshots(ctx context.Context, journal Journal, runID string, a dashboard.Artifacts) error {
	items, summary, err := a.Encode()
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	for kind, payload := range map[string][]byte{
		storage.SnapshotItems:   items,
		storage.SnapshotSummary: summary,
	} {
		if err := journal.SaveSnapshot(ctx, storage.Snapshot{Kind: kind, RunID: runID, Payload: payload}); err != nil {
			return fmt.Errorf("save %s snapshot: %w", kind, err)
		}
	}
	return nil
}

func (s *SyncService) saveSnapshots(ctx context.Context, logger *log.Logger, runID string, a dashboard.Artifacts) {
	if s.journal == nil {
		return
	}
	if err := saveSnapshots(ctx, s.journal, runID, a); err != nil {
		logger.WarnContext(ctx, "Failed to snapshot artifacts", log.FieldError, err.Error())
	}
}

func (c ReconcilerConfig) location() *time.Location {
	if c.Location == nil {
		return SeoulLocation()
	}
	return c.Location
}
