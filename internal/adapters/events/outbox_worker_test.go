package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quorasec/iamcore/internal/ports"
)

type fakeOutboxRepo struct {
	mu           sync.Mutex
	pending      []ports.OutboxRecord
	published    []uuid.UUID
	failed       []uuid.UUID
	deadLettered []uuid.UUID
	claims       map[uuid.UUID]string
}

func (f *fakeOutboxRepo) ClaimUnpublished(_ context.Context, limit int, claimToken string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := f.pending
	if len(batch) > limit {
		batch = batch[:limit]
	}
	for _, rec := range batch {
		f.claims[rec.OutboxID] = claimToken
	}
	return batch, nil
}

func (f *fakeOutboxRepo) MarkPublished(_ context.Context, id uuid.UUID, claimToken string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims[id] != claimToken {
		return errors.New("claim lost")
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, claimToken, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims[id] != claimToken {
		return errors.New("claim lost")
	}
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkDeadLettered(_ context.Context, id uuid.UUID, claimToken, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claims[id] != claimToken {
		return errors.New("claim lost")
	}
	f.deadLettered = append(f.deadLettered, id)
	return nil
}

type flakyPublisher struct {
	mu      sync.Mutex
	failFor map[string]bool
	keys    []string
}

func (p *flakyPublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, partitionKey)
	if p.failFor[eventType] {
		return errors.New("broker unavailable")
	}
	return nil
}

func record(eventType string, retries int) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:     uuid.New(),
		EventType:    eventType,
		PartitionKey: "principal-1",
		Payload:      []byte(`{"ok":true}`),
		RetryCount:   retries,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestProcessOnceRoutesOutcomes(t *testing.T) {
	t.Parallel()

	healthy := record("LOGIN_SUCCESS", 0)
	retryable := record("BROKEN", 0)
	exhausted := record("BROKEN", 1)
	stale := record("LOGIN_SUCCESS", 2)

	repo := &fakeOutboxRepo{
		pending: []ports.OutboxRecord{healthy, retryable, exhausted, stale},
		claims:  map[uuid.UUID]string{},
	}
	pub := &flakyPublisher{failFor: map[string]bool{"BROKEN": true}}
	worker := NewOutboxWorker(slog.Default(), repo, pub, time.Second, 10, 30*time.Second, 2)

	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("processOnce failed: %v", err)
	}

	if len(repo.published) != 1 || repo.published[0] != healthy.OutboxID {
		t.Fatalf("expected only the healthy record published, got %v", repo.published)
	}
	// First failure stays queued for retry.
	if len(repo.failed) != 1 || repo.failed[0] != retryable.OutboxID {
		t.Fatalf("expected one retry-scheduled record, got %v", repo.failed)
	}
	// A failure at the retry ceiling and a record already past it both land
	// in the dead letter set.
	if len(repo.deadLettered) != 2 {
		t.Fatalf("expected two dead-lettered records, got %v", repo.deadLettered)
	}
	for _, key := range pub.keys {
		if key != "principal-1" {
			t.Fatalf("partition key lost in publish: %q", key)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &fakeOutboxRepo{claims: map[uuid.UUID]string{}}
	worker := NewOutboxWorker(slog.Default(), repo, &flakyPublisher{failFor: map[string]bool{}}, 5*time.Millisecond, 10, time.Second, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop on cancel")
	}
}

func TestLoggingPublisherAccepts(t *testing.T) {
	t.Parallel()

	p := NewLoggingPublisher(slog.Default())
	if err := p.Publish(context.Background(), "LOGIN_SUCCESS", []byte(`{}`), "key"); err != nil {
		t.Fatalf("logging publisher must not fail: %v", err)
	}
}
