package domain

import (
	"bytes"
	"encoding/json"
)

// Optional хранит поле частичного обновления.
// Различает три состояния: поле не передано, передано значение, передан явный null.
type Optional[T any] struct {
	value T
	set   bool
	null  bool
}

// Some возвращает заполненное значение.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Null возвращает явно обнулённое значение.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsSet сообщает, присутствовало ли поле в запросе.
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull сообщает, был ли передан явный null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Get возвращает значение, если оно передано и не равно null.
func (o Optional[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// UnmarshalJSON вызывается только для присутствующих в документе полей,
// поэтому отсутствующее поле остаётся в состоянии "не передано".
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.value = zero
		o.null = true
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON сериализует значение или null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
