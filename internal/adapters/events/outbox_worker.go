package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/ports"
)

type deliveryOutcome int

const (
	outcomePublished deliveryOutcome = iota
	outcomeRetryScheduled
	outcomeDeadLettered
)

// OutboxWorker drains the audit outbox into the event publisher. Broker
// delivery stays out of the request path: rows wait in the outbox until
// delivered or dead-lettered.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger.With("module", "events.outbox_worker", "layer", "adapter"),
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var counts [3]int
	for _, rec := range records {
		counts[w.deliver(ctx, claimToken, rec, now)]++
	}

	w.logger.InfoContext(ctx, "outbox batch processed",
		"operation", "outbox_process_once",
		"outcome", "success",
		"batch_size", len(records),
		"published_count", counts[outcomePublished],
		"retry_count", counts[outcomeRetryScheduled],
		"dead_lettered_count", counts[outcomeDeadLettered],
	)
	return nil
}

// deliver publishes a single claimed record and records the result. Rows that
// already exhausted their retry budget go straight to the DLQ without another
// broker attempt.
func (w *OutboxWorker) deliver(ctx context.Context, claimToken string, rec ports.OutboxRecord, now time.Time) deliveryOutcome {
	if rec.RetryCount >= w.maxRetries {
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
		return outcomeDeadLettered
	}

	err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
	if err == nil {
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
		return outcomePublished
	}

	retries := rec.RetryCount + 1
	if retries >= w.maxRetries {
		w.logger.ErrorContext(ctx, "outbox message moved to dlq",
			"operation", "publish_event",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"event_type", rec.EventType,
			"retry_count", retries,
			"error", err,
		)
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
		return outcomeDeadLettered
	}

	w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"retry_count", retries,
		"error", err,
	)
	_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
	return outcomeRetryScheduled
}
