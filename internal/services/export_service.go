package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bms/internal/core"
	"bms/internal/dashboard"
	"bms/internal/log"
	"bms/internal/remote"
	"bms/internal/storage"
)

// ExportConfig holds configuration for the export service
type ExportConfig struct {
	PageSize int
	Deadline time.Time
	// OutputDir receives budget_data.json and summary.json; empty skips
	// writing files.
	OutputDir string
	Location  *time.Location
}

// ExportResult describes one export.
type ExportResult struct {
	RunID     string
	Records   int
	Partial   bool
	Summary   core.Summary
	Artifacts dashboard.Artifacts
}

// ExportService rebuilds the dashboard artifacts from the remote store.
type ExportService struct {
	store   remote.Store
	journal Journal
	config  ExportConfig
	logger  *log.Logger
	now     func() time.Time
}

// NewExportService wires an export service. journal may be nil.
func NewExportService(store remote.Store, journal Journal, config ExportConfig, logger *log.Logger) *ExportService {
	if logger == nil {
		logger = log.Discard()
	}
	if config.Location == nil {
		config.Location = SeoulLocation()
	}
	return &ExportService{
		store:   store,
		journal: journal,
		config:  config,
		logger:  logger.WithComponent(log.ComponentExport),
		now:     time.Now,
	}
}

// Export reads every stored record, summarizes them and builds the
// artifacts. A failed page degrades to the entries read so far. Statuses
// are taken as stored.
func (s *ExportService) Export(ctx context.Context) (ExportResult, error) {
	res := ExportResult{RunID: uuid.NewString()}
	started := s.now()

	var (
		lines   []dashboard.Line
		records []core.Record
	)
	err := remote.Walk(ctx, s.store, s.config.PageSize, func(e remote.Entry) {
		lines = append(lines, dashboard.Line{ID: e.ID, Record: e.Record})
		records = append(records, e.Record)
	})
	if err != nil {
		res.Partial = true
		s.logger.WarnContext(ctx, "Export is partial",
			log.FieldError, err.Error(),
			log.FieldRecords, len(records))
	}
	res.Records = len(records)

	now := s.now().In(s.config.Location)
	res.Summary = core.Summarize(records, s.config.Deadline, now)
	res.Artifacts = dashboard.Build(lines, res.Summary)

	if s.config.OutputDir != "" {
		if err := res.Artifacts.WriteFiles(s.config.OutputDir); err != nil {
			return res, fmt.Errorf("write artifacts: %w", err)
		}
		s.logger.InfoContext(ctx, "Artifacts written", "dir", s.config.OutputDir)
	}

	if s.journal != nil {
		if err := saveSnapshots(ctx, s.journal, res.RunID, res.Artifacts); err != nil {
			s.logger.WarnContext(ctx, "Failed to snapshot artifacts", log.FieldError, err.Error())
		}
		run := storage.Run{
			ID:         res.RunID,
			Trigger:    "export",
			StartedAt:  started,
			FinishedAt: s.now(),
			Records:    res.Records,
			Partial:    res.Partial,
			Status:     storage.RunSucceeded,
		}
		if err := s.journal.SaveRun(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "Failed to journal export", log.FieldError, err.Error())
		}
	}

	s.logger.InfoContext(ctx, "Export finished",
		log.FieldRunID, res.RunID,
		log.FieldRecords, res.Records,
		"partial", res.Partial)
	return res, nil
}
