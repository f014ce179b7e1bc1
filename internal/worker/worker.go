// Package worker drives pipeline runs from AMQP requests and a periodic
// schedule, never running two at once.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bms/internal/amqp"
	"bms/internal/log"
	"bms/internal/services"
)

// Triggers recorded on runs started by the worker.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// Runner runs the pipeline once. *services.SyncService implements it.
type Runner interface {
	Run(ctx context.Context, trigger string) (services.RunResult, error)
}

// Config holds configuration for the worker
type Config struct {
	// Interval between scheduled runs; zero disables the schedule
	Interval time.Duration

	// RunOnStart runs the pipeline once when the schedule starts
	RunOnStart bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

type Worker struct {
	runner Runner
	config Config
	logger *log.Logger

	// runState guards busy and the one request queued behind a busy run.
	runState       sync.Mutex
	busy           bool
	pending        bool
	pendingTrigger string

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(runner Runner, config Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Discard()
	}
	return &Worker{
		runner: runner,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// RunOnce runs the pipeline. When a run is already in progress the request
// is queued and ran is false: the busy run starts one more pass once it
// finishes, however many requests arrived meanwhile, so edits made after
// it read the sheet are not left for the next scheduled run.
func (w *Worker) RunOnce(ctx context.Context, trigger string) (res services.RunResult, ran bool, err error) {
	w.runState.Lock()
	if w.busy {
		w.pending = true
		w.pendingTrigger = trigger
		w.runState.Unlock()
		w.logger.InfoContext(ctx, "Run already in progress, request queued", log.FieldTrigger, trigger)
		return services.RunResult{}, false, nil
	}
	w.busy = true
	w.runState.Unlock()

	for {
		res, err = w.run(ctx, trigger)

		w.runState.Lock()
		if !w.pending || ctx.Err() != nil {
			w.busy, w.pending = false, false
			w.runState.Unlock()
			return res, true, err
		}
		trigger = w.pendingTrigger
		w.pending = false
		w.runState.Unlock()
		w.logger.InfoContext(ctx, "Running queued request", log.FieldTrigger, trigger)
	}
}

func (w *Worker) run(ctx context.Context, trigger string) (services.RunResult, error) {
	res, err := w.runner.Run(ctx, trigger)
	if err != nil {
		w.logger.ErrorContext(ctx, "Run failed", log.FieldTrigger, trigger, log.FieldError, err.Error())
		return res, err
	}
	if res.Failed() {
		w.logger.WarnContext(ctx, "Run finished with record errors",
			log.FieldRunID, res.RunID,
			log.FieldErrors, res.Stats.Errors)
	}
	return res, nil
}

// HandleSyncRequest is the AMQP handler. Only a fatal run error is
// returned, which makes the consumer requeue the request once.
func (w *Worker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing sync request",
		"id", msg.ID,
		log.FieldTrigger, msg.Trigger,
		"requested_by", msg.RequestedBy)

	if _, _, err := w.RunOnce(ctx, msg.Trigger); err != nil {
		return fmt.Errorf("sync request %s: %w", msg.ID, err)
	}
	return nil
}

// Start begins the schedule loop. Returns an error if already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Worker schedule started",
		"interval", w.config.Interval,
		"run_on_start", w.config.RunOnStart)
	return nil
}

// Stop signals the loop and waits for an in-flight run to finish.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the schedule loop is running
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	if w.config.RunOnStart {
		w.RunOnce(ctx, TriggerStartup)
	}

	var tick <-chan time.Time
	if w.config.Interval > 0 {
		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-tick:
			w.RunOnce(ctx, TriggerSchedule)
		}
	}
}
