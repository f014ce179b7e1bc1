package notify

import (
	"context"
	"fmt"

	"bms/internal/amqp"
)

// CompletedPublisher is satisfied by *amqp.Client.
type CompletedPublisher interface {
	PublishSyncCompleted(ctx context.Context, msg *amqp.SyncCompletedMessage) error
}

// AMQP publishes a sync.completed event per run.
type AMQP struct {
	pub CompletedPublisher
}

func NewAMQP(pub CompletedPublisher) *AMQP {
	return &AMQP{pub: pub}
}

func (a *AMQP) NotifyRun(ctx context.Context, r Report) error {
	msg := &amqp.SyncCompletedMessage{
		RunID:      r.RunID,
		Trigger:    r.Trigger,
		Status:     r.Status(),
		Updated:    r.Stats.Updated,
		Created:    r.Stats.Created,
		Errors:     r.Stats.Errors,
		Failed:     r.Stats.Failed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if err := a.pub.PublishSyncCompleted(ctx, msg); err != nil {
		return fmt.Errorf("publish sync completed: %w", err)
	}
	return nil
}
