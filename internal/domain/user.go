package domain

import (
	"strings"
	"time"
)

// User: покупатель магазина. HashedPassword никогда не покидает сервисный слой.
type User struct {
	ID             int64
	Email          string
	FullName       *string
	HashedPassword string
	CreatedAt      time.Time
}

// UserPatch описывает частичное обновление пользователя.
// Пароль к этому моменту уже захеширован сервисом.
type UserPatch struct {
	Email          Optional[string]
	FullName       Optional[string]
	HashedPassword Optional[string]
}

// IsEmpty сообщает, что в патче нет ни одного поля.
func (p UserPatch) IsEmpty() bool {
	return !p.Email.IsSet() && !p.FullName.IsSet() && !p.HashedPassword.IsSet()
}

// ApplyTo применяет присутствующие поля к пользователю.
func (p UserPatch) ApplyTo(u *User) error {
	if p.Email.IsSet() {
		email, ok := p.Email.Get()
		if !ok {
			return NewValidationError("email", "must not be null")
		}
		email = NormalizeEmail(email)
		if email == "" {
			return NewValidationError("email", "must not be empty")
		}
		u.Email = email
	}
	if p.FullName.IsSet() {
		if name, ok := p.FullName.Get(); ok {
			u.FullName = &name
		} else {
			u.FullName = nil
		}
	}
	if p.HashedPassword.IsSet() {
		hash, ok := p.HashedPassword.Get()
		if !ok || hash == "" {
			return NewValidationError("password", "must not be null")
		}
		u.HashedPassword = hash
	}
	return nil
}

// NormalizeEmail приводит email к каноничному виду для проверки уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
