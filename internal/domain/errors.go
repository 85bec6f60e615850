package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: базовая ошибка некорректных входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSellerNotFound возвращается, если продавец не найден.
	ErrSellerNotFound = errors.New("seller not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmailTaken: email уже занят другим пользователем.
	ErrEmailTaken = errors.New("email already registered")
	// ErrSellerEmailTaken: email уже занят другим продавцом.
	ErrSellerEmailTaken = errors.New("seller email already registered")
	// ErrUserHasOrders: пользователя нельзя удалить, пока на него ссылаются заказы.
	ErrUserHasOrders = errors.New("user has orders")
	// ErrProductReferenced: товар нельзя удалить, пока он есть в позициях заказов.
	ErrProductReferenced = errors.New("product is referenced by orders")

	// ErrInsufficientStock: на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateOrderItem: товар повторяется в одном заказе.
	ErrDuplicateOrderItem = errors.New("duplicate order item")

	// Ошибка отсутствующего пользователя в заказе.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("order status is invalid")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyInProgress          = errors.New("request with this idempotency key is still in progress")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError создаёт ошибку валидации для поля.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// OrderRejectedError: бизнес-отказ в оформлении заказа.
// Reason всегда один из ErrUserNotFound, ErrProductNotFound,
// ErrInsufficientStock или ErrDuplicateOrderItem.
type OrderRejectedError struct {
	Reason    error
	UserID    int64
	ProductID int64
}

func (e *OrderRejectedError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrUserNotFound):
		return fmt.Sprintf("user %d not found", e.UserID)
	case errors.Is(e.Reason, ErrProductNotFound):
		return fmt.Sprintf("product %d not found", e.ProductID)
	case errors.Is(e.Reason, ErrInsufficientStock):
		return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
	case errors.Is(e.Reason, ErrDuplicateOrderItem):
		return fmt.Sprintf("duplicate item for product %d", e.ProductID)
	default:
		return fmt.Sprintf("order rejected: %v", e.Reason)
	}
}

func (e *OrderRejectedError) Unwrap() error {
	return e.Reason
}

// RejectUnknownUser: заказ ссылается на несуществующего пользователя.
func RejectUnknownUser(userID int64) error {
	return &OrderRejectedError{Reason: ErrUserNotFound, UserID: userID}
}

// RejectUnknownProduct: позиция ссылается на несуществующий товар.
func RejectUnknownProduct(productID int64) error {
	return &OrderRejectedError{Reason: ErrProductNotFound, ProductID: productID}
}

// RejectInsufficientStock: остатка товара не хватает на позицию.
func RejectInsufficientStock(productID int64) error {
	return &OrderRejectedError{Reason: ErrInsufficientStock, ProductID: productID}
}

// RejectDuplicateItem: товар встречается в заказе повторно.
func RejectDuplicateItem(productID int64) error {
	return &OrderRejectedError{Reason: ErrDuplicateOrderItem, ProductID: productID}
}

// IsOrderRejected проверяет, что ошибка является бизнес-отказом заказа.
func IsOrderRejected(err error) bool {
	var rejected *OrderRejectedError
	return errors.As(err, &rejected)
}

// IsNotFound проверяет, что ошибка означает отсутствие сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSellerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsConflict проверяет, что ошибка означает конфликт с текущим состоянием данных.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrSellerEmailTaken) ||
		errors.Is(err, ErrUserHasOrders) ||
		errors.Is(err, ErrProductReferenced)
}
