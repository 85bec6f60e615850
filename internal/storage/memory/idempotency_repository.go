package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyKeys хранит ключи Idempotency-Key отдельно от Store:
// они не участвуют в транзакции заказа.
type idempotencyKeys struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	now     func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyKeys{
		records: make(map[string]domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func normalizeKey(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrIdempotencyKeyRequired
	}
	return key, nil
}

func (k *idempotencyKeys) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	if requestHash = strings.TrimSpace(requestHash); requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := k.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Просроченную запись, до которой ещё не дошла очистка, занимает новый запрос.
	if existing, ok := k.records[key]; ok && !existing.Expired(now) {
		if existing.Matches(requestHash) {
			return copyRecord(existing), domain.ErrIdempotencyKeyAlreadyExists
		}
		return copyRecord(existing), domain.ErrIdempotencyHashMismatch
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	k.records[key] = record
	return copyRecord(record), nil
}

func (k *idempotencyKeys) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := normalizeKey(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	record, ok := k.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(record), nil
}

func (k *idempotencyKeys) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return k.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (k *idempotencyKeys) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return k.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// finish сохраняет ответ, который получат повторы с тем же ключом.
func (k *idempotencyKeys) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key, err := normalizeKey(ctx, key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	record, ok := k.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.HTTPStatus = httpStatus
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.UpdatedAt = k.now()
	k.records[key] = record
	return nil
}

func (k *idempotencyKeys) Delete(ctx context.Context, key string) error {
	key, err := normalizeKey(ctx, key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.records[key]; !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	delete(k.records, key)
	return nil
}

// DeleteExpired удаляет не больше limit просроченных записей; limit <= 0 снимает ограничение.
func (k *idempotencyKeys) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if before.IsZero() {
		before = k.now()
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, record := range k.records {
		if limit > 0 && removed == limit {
			break
		}
		if record.Expired(before) {
			delete(k.records, key)
			removed++
		}
	}
	return removed, nil
}

func copyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

var _ domain.IdempotencyRepository = (*idempotencyKeys)(nil)
