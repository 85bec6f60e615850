package domain

import (
	"context"
	"time"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Delete освобождает ключ, чтобы клиент мог повторить запрос.
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// CatalogCache: кэш чтения каталога. Промах возвращает ok=false без ошибки.
type CatalogCache interface {
	GetProduct(ctx context.Context, id int64) (Product, bool, error)
	SetProduct(ctx context.Context, product Product) error
	DeleteProducts(ctx context.Context, ids ...int64) error
	GetCategories(ctx context.Context) ([]string, bool, error)
	SetCategories(ctx context.Context, categories []string) error
	DeleteCategories(ctx context.Context) error
}

const (
	// AggregateTypeOrder: тип агрегата для событий заказов.
	AggregateTypeOrder = "order"
	// EventTypeOrderConfirmed публикуется после успешного оформления заказа.
	EventTypeOrderConfirmed = "order.confirmed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
