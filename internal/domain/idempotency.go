package domain

import "time"

// IdempotencyStatus: состояние ключа Idempotency-Key у POST /orders.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing: заказ по ключу ещё оформляется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone: заказ оформлен, ответ 2xx сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed: запрос отклонён с 4xx, ответ сохранён для повтора.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid сообщает, известен ли статус.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Finished сообщает, что по ключу уже есть сохранённый ответ.
func (s IdempotencyStatus) Finished() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// IdempotencyRecord связывает ключ клиента с отпечатком запроса и сохранённым ответом.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	// TTLAt: момент, после которого запись удаляет cleanup-воркер.
	TTLAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired сообщает, истёк ли срок хранения записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !r.TTLAt.After(now)
}

// Matches проверяет, что повтор пришёл с тем же телом запроса.
func (r IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == requestHash
}
