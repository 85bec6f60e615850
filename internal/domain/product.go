package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale: количество знаков после запятой у денежных сумм.
const MoneyScale = 2

// MaxStock: верхняя граница остатка и количества в строке заказа, влезает в INTEGER.
const MaxStock = math.MaxInt32

// MaxMoney: наибольшая сумма, которую вмещает NUMERIC(12,2).
var MaxMoney = decimal.RequireFromString("9999999999.99")

// Product: товар продавца. Stock никогда не бывает отрицательным.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Category    string
	SellerID    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductFilter задаёт необязательный фильтр списка товаров.
type ProductFilter struct {
	// Category: точное совпадение категории; пустая строка отключает фильтр.
	Category string
}

// Validate проверяет инварианты товара перед сохранением.
func (p Product) Validate() error {
	if p.Name == "" {
		return NewValidationError("name", "is required")
	}
	if p.Category == "" {
		return NewValidationError("category", "is required")
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if p.Stock < 0 {
		return NewValidationError("stock", "must be non-negative")
	}
	if p.Stock > MaxStock {
		return NewValidationError("stock", "must not exceed 2147483647")
	}
	if p.SellerID <= 0 {
		return NewValidationError("seller_id", "must be positive")
	}
	return nil
}

// ValidatePrice проверяет, что цена неотрицательна, не больше MaxMoney и не точнее копейки.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return NewValidationError("price", "must be non-negative")
	}
	if price.GreaterThan(MaxMoney) {
		return NewValidationError("price", "must not exceed 9999999999.99")
	}
	if !price.Equal(price.Round(MoneyScale)) {
		return NewValidationError("price", "must have at most 2 decimal places")
	}
	return nil
}

// ProductPatch описывает частичное обновление товара.
type ProductPatch struct {
	Name        Optional[string]
	Description Optional[string]
	Price       Optional[decimal.Decimal]
	Stock       Optional[int]
	Category    Optional[string]
	SellerID    Optional[int64]
}

// IsEmpty сообщает, что в патче нет ни одного поля.
func (p ProductPatch) IsEmpty() bool {
	return !p.Name.IsSet() && !p.Description.IsSet() && !p.Price.IsSet() &&
		!p.Stock.IsSet() && !p.Category.IsSet() && !p.SellerID.IsSet()
}

// ApplyTo применяет присутствующие поля к товару и проверяет результат.
// Explicit null допустим только для description.
func (p ProductPatch) ApplyTo(product *Product) error {
	if p.Name.IsSet() {
		v, ok := p.Name.Get()
		if !ok {
			return NewValidationError("name", "must not be null")
		}
		product.Name = v
	}
	if p.Description.IsSet() {
		if v, ok := p.Description.Get(); ok {
			product.Description = &v
		} else {
			product.Description = nil
		}
	}
	if p.Price.IsSet() {
		v, ok := p.Price.Get()
		if !ok {
			return NewValidationError("price", "must not be null")
		}
		product.Price = v
	}
	if p.Stock.IsSet() {
		v, ok := p.Stock.Get()
		if !ok {
			return NewValidationError("stock", "must not be null")
		}
		product.Stock = v
	}
	if p.Category.IsSet() {
		v, ok := p.Category.Get()
		if !ok {
			return NewValidationError("category", "must not be null")
		}
		product.Category = v
	}
	if p.SellerID.IsSet() {
		v, ok := p.SellerID.Get()
		if !ok {
			return NewValidationError("seller_id", "must not be null")
		}
		product.SellerID = v
	}
	return product.Validate()
}
