package domain

import "time"

// Seller: продавец, владеющий товарами.
type Seller struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// Validate проверяет обязательные поля продавца.
func (s Seller) Validate() error {
	if s.Name == "" {
		return NewValidationError("name", "is required")
	}
	if s.Email == "" {
		return NewValidationError("email", "is required")
	}
	return nil
}
