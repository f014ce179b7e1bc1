// Package notify delivers post-run summaries. Delivery is best effort:
// callers log a failed notification and carry on.
package notify

import (
	"context"
	"errors"
	"time"

	"bms/internal/core"
)

// Report is what a notifier knows about a finished run.
type Report struct {
	RunID      string
	Trigger    string
	Stats      core.SyncStats
	Partial    bool
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    core.Summary
}

// Status is "failed" when any record failed, "succeeded" otherwise.
func (r Report) Status() string {
	if r.Stats.HasErrors() {
		return "failed"
	}
	return "succeeded"
}

type Notifier interface {
	NotifyRun(ctx context.Context, r Report) error
}

// Noop drops every report.
type Noop struct{}

func (Noop) NotifyRun(context.Context, Report) error { return nil }

// Multi fans a report out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyRun(ctx context.Context, r Report) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRun(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
