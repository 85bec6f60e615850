package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан внутри транзакции, позиции ещё проверяются.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed: все позиции проверены, остатки списаны.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа.
// Ключ позиции: пара (OrderID, ProductID).
type OrderItem struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	// UnitPrice: снимок цены товара на момент заказа, дальше не меняется.
	UnitPrice decimal.Decimal
}

// Subtotal возвращает quantity * unit_price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          int64
	UserID      int64
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	CreatedAt   time.Time
}

// SumItems считает сумму позиций без округлений.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if !SumItems(o.Items).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// OrderLine: строка запроса на оформление заказа.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// PlaceOrderRequest: запрос на оформление заказа; порядок строк значим.
type PlaceOrderRequest struct {
	UserID int64
	Items  []OrderLine
}

// Validate проверяет форму запроса до обращения к хранилищу.
func (r PlaceOrderRequest) Validate() error {
	if r.UserID <= 0 {
		return NewValidationError("user_id", "must be positive")
	}
	if len(r.Items) == 0 {
		return NewValidationError("items", "order must contain at least one item")
	}
	for _, line := range r.Items {
		if line.ProductID <= 0 {
			return NewValidationError("items.product_id", "must be positive")
		}
		if line.Quantity < 1 {
			return NewValidationError("items.quantity", "must be at least 1")
		}
		if line.Quantity > MaxStock {
			return NewValidationError("items.quantity", "must not exceed 2147483647")
		}
	}
	return nil
}

// ProductIDs возвращает уникальные идентификаторы товаров из запроса.
func (r PlaceOrderRequest) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.Items))
	ids := make([]int64, 0, len(r.Items))
	for _, line := range r.Items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
