package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const defaultKeyTTL = 24 * time.Hour

// Decision: результат попытки занять ключ.
type Decision struct {
	// Replay означает, что запрос уже выполнялся и нужно вернуть сохранённый ответ.
	Replay     bool
	HTTPStatus int
	Body       []byte
}

// Guard связывает idempotency-key с результатом обработки запроса.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт время жизни ключа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard создаёт Guard поверх репозитория ключей.
func NewGuard(repo domain.IdempotencyRepository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo:   repo,
		ttl:    defaultKeyTTL,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "idempotency"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin занимает ключ. Повтор с тем же телом после завершения даёт Replay,
// повтор с другим телом получает ErrIdempotencyHashMismatch, параллельный повтор получает ErrIdempotencyInProgress.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Decision{}, domain.ErrIdempotencyKeyRequired
	}

	existing, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return Decision{}, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Decision{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
	default:
		return Decision{}, fmt.Errorf("acquire idempotency key: %w", err)
	}

	if existing.Key == "" {
		if existing, err = g.repo.Get(ctx, key); err != nil {
			return Decision{}, fmt.Errorf("load idempotency key: %w", err)
		}
	}
	if !existing.Matches(requestHash) {
		return Decision{}, domain.ErrIdempotencyHashMismatch
	}
	if !existing.Status.Finished() {
		return Decision{}, domain.ErrIdempotencyInProgress
	}

	g.logger.WithFields(log.Fields{
		"idempotency_key": key,
		"http_status":     existing.HTTPStatus,
	}).Debug("replaying stored response")
	return Decision{Replay: true, HTTPStatus: existing.HTTPStatus, Body: existing.ResponseBody}, nil
}

// Complete сохраняет ответ. 5xx освобождает ключ, чтобы клиент мог повторить запрос,
// 4xx сохраняется как failed и воспроизводится при повторе.
func (g *Guard) Complete(ctx context.Context, key string, httpStatus int, body []byte) error {
	key = strings.TrimSpace(key)

	var err error
	switch {
	case httpStatus >= http.StatusInternalServerError:
		err = g.repo.Delete(ctx, key)
	case httpStatus >= http.StatusBadRequest:
		err = g.repo.MarkFailed(ctx, key, body, httpStatus)
	default:
		err = g.repo.MarkDone(ctx, key, body, httpStatus)
	}
	if err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// HashRequest возвращает отпечаток запроса: метод, путь и тело.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
