package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bms/internal/core"
	"bms/internal/log"
	"bms/internal/remote"
)

// Reconcile operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// RetryAttempts is the total number of tries per mutation (default: 3)
	RetryAttempts int

	// RetryInitial is the first backoff interval (default: 500ms)
	RetryInitial time.Duration

	// RetryMax caps the backoff interval (default: 5s)
	RetryMax time.Duration

	// CallTimeout bounds every remote call (default: 30s)
	CallTimeout time.Duration

	// Location decides what "today" is for the last-sync date (default: Asia/Seoul)
	Location *time.Location
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		RetryAttempts: 3,
		RetryInitial:  500 * time.Millisecond,
		RetryMax:      5 * time.Second,
		CallTimeout:   30 * time.Second,
		Location:      SeoulLocation(),
	}
}

// SeoulLocation returns Asia/Seoul, or a fixed +09:00 zone when the tz
// database is unavailable.
func SeoulLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// Outcome is what happened to one record.
type Outcome struct {
	Record   core.Record
	RemoteID string
	Op       string
	Err      error
}

// Reconciler upserts records into a remote store one at a time. A failing
// record is counted and skipped; it never stops the loop.
type Reconciler struct {
	store  remote.Store
	config ReconcilerConfig
	logger *log.Logger
	sl     *log.StructuredLogger
	now    func() time.Time
}

func NewReconciler(store remote.Store, config ReconcilerConfig, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Discard()
	}
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultReconcilerConfig().CallTimeout
	}
	if config.Location == nil {
		config.Location = SeoulLocation()
	}
	logger = logger.WithComponent(log.ComponentReconciler)
	return &Reconciler{
		store:  store,
		config: config,
		logger: logger,
		sl:     log.NewStructuredLogger(logger),
		now:    time.Now,
	}
}

// today is midnight of the current date in the configured location.
func (r *Reconciler) today() time.Time {
	n := r.now().In(r.config.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, r.config.Location)
}

// Reconcile visits every record in order: update when the index knows it,
// create otherwise.
func (r *Reconciler) Reconcile(ctx context.Context, records []core.Record, ix *remote.Index) ([]Outcome, core.SyncStats) {
	if ix == nil {
		ix = remote.NewIndex()
	}
	r.warnDuplicates(ctx, records)

	today := r.today()
	outcomes := make([]Outcome, 0, len(records))
	var stats core.SyncStats

	for _, rec := range records {
		rec = rec.Classified()
		rec.LastSyncDate = today
		props := remote.PropertiesFor(rec)

		out := Outcome{Record: rec}
		if id, ok := ix.Lookup(rec); ok {
			out.Op, out.RemoteID = OpUpdate, id
			out.Err = r.retry(ctx, OpUpdate, rec, always, func(ctx context.Context) error {
				return r.store.Update(ctx, id, props)
			})
		} else {
			out.Op = OpCreate
			// a create that may have landed is not repeated, or a store
			// without sync keys would end up with a duplicate
			out.Err = r.retry(ctx, OpCreate, rec, remote.NotApplied, func(ctx context.Context) error {
				id, err := r.store.Create(ctx, props)
				if err == nil {
					out.RemoteID = id
				}
				return err
			})
		}

		switch {
		case out.Err != nil:
			stats.Errors++
			stats.Failed = append(stats.Failed, rec.ItemName)
			r.sl.LogError(ctx, "Failed to sync record", out.Err, out.Op,
				log.NewFields().WithRecord(rec.Row, rec.ItemName, rec.Category))
		case out.Op == OpUpdate:
			stats.Updated++
			r.sl.LogRecordSynced(ctx, out.Op, rec.Row, rec.ItemName, rec.Category, out.RemoteID)
		default:
			stats.Created++
			r.sl.LogRecordSynced(ctx, out.Op, rec.Row, rec.ItemName, rec.Category, out.RemoteID)
		}
		outcomes = append(outcomes, out)
	}

	r.logger.InfoContext(ctx, "Reconciliation finished",
		log.NewFields().WithStats(stats.Updated, stats.Created, stats.Errors).ToSlice()...)
	return outcomes, stats
}

func always(error) bool { return true }

// retry runs fn with a per-call timeout and exponential backoff. Rejected
// requests, errors retryable refuses and a cancelled parent context end the
// loop at once.
func (r *Reconciler) retry(ctx context.Context, op string, rec core.Record, retryable func(error) bool, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if r.config.RetryInitial > 0 {
		b.InitialInterval = r.config.RetryInitial
	}
	if r.config.RetryMax > 0 {
		b.MaxInterval = r.config.RetryMax
	}
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.RetryAttempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
		defer cancel()

		err := fn(callCtx)
		if err != nil && (errors.Is(err, remote.ErrRejected) || ctx.Err() != nil || !retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.WarnContext(ctx, "Remote call failed, retrying",
			log.FieldOperation, op,
			log.FieldItemName, rec.ItemName,
			log.FieldAttempt, attempt,
			log.FieldError, err.Error(),
			"retry_in", wait)
	})
	if err != nil {
		return fmt.Errorf("%s %q after %d attempt(s): %w", op, rec.ItemName, attempt, err)
	}
	return nil
}

func (r *Reconciler) warnDuplicates(ctx context.Context, records []core.Record) {
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		name := strings.TrimSpace(rec.ItemName)
		seen[name]++
		if seen[name] == 2 {
			r.logger.WarnContext(ctx, "Duplicate item name in source",
				log.FieldItemName, name,
				log.FieldCategory, rec.Category)
		}
	}
}
