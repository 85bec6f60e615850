package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(NewStore())

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "1",
		EventType:     domain.EventTypeOrderConfirmed,
		Payload:       []byte(`{"order_id":1}`),
	}

	saved, err := repo.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}
}

func TestOutboxRepository_PullPendingKeepsEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository(NewStore())

	for i := 0; i < 5; i++ {
		if _, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	pending, err := repo.PullPending(ctx, 3)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != "a" || pending[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", pending)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewOutboxRepository(store)

	sent, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	failed, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if store.outbox[sent.ID].status != outboxStatusSent {
		t.Fatalf("expected sent status, got %s", store.outbox[sent.ID].status)
	}
	if store.outbox[failed.ID].status != outboxStatusFailed {
		t.Fatalf("expected failed status, got %s", store.outbox[failed.ID].status)
	}

	if err := repo.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return clock }))
	repo := NewOutboxRepository(store)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected empty stats: %+v", stats)
	}

	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	clock = clock.Add(time.Minute)
	if _, err := repo.Enqueue(ctx, domain.OutboxMessage{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	stats, err = repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if !stats.OldestPendingAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected oldest pending at %s", stats.OldestPendingAt)
	}
}
