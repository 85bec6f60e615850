package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserRepository описывает требования к хранилищу пользователей.
type UserRepository interface {
	// Create сохраняет пользователя и возвращает его с присвоенным ID.
	// Возвращает ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, user User) (User, error)
	// Get возвращает пользователя или ErrUserNotFound.
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	// Update применяет патч атомарно относительно других обновлений.
	Update(ctx context.Context, id int64, patch UserPatch) (User, error)
	// Delete удаляет пользователя; ErrUserHasOrders, если на него ссылаются заказы.
	Delete(ctx context.Context, id int64) error
}

// SellerRepository описывает требования к хранилищу продавцов.
type SellerRepository interface {
	Create(ctx context.Context, seller Seller) (Seller, error)
	Get(ctx context.Context, id int64) (Seller, error)
	List(ctx context.Context) ([]Seller, error)
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create возвращает ErrSellerNotFound, если продавца нет.
	Create(ctx context.Context, product Product) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	// List возвращает товары по возрастанию ID.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	Update(ctx context.Context, id int64, patch ProductPatch) (Product, error)
	// Delete возвращает ErrProductReferenced, если товар есть в заказах.
	Delete(ctx context.Context, id int64) error
	// Categories возвращает отсортированный список уникальных категорий.
	Categories(ctx context.Context) ([]string, error)
}

// OrderRepository отдаёт сохранённые заказы вместе с позициями.
type OrderRepository interface {
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает заказы по возрастанию ID.
	List(ctx context.Context) ([]Order, error)
}

// OrderTransactor выполняет оформление заказа как единую транзакцию.
type OrderTransactor interface {
	// WithinOrderTx вызывает fn внутри транзакции. Ошибка fn откатывает все изменения.
	WithinOrderTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx: операции, доступные внутри транзакции оформления заказа.
type OrderTx interface {
	// LockUser блокирует пользователя от удаления до конца транзакции.
	LockUser(ctx context.Context, userID int64) error
	// LockProducts блокирует товары в порядке возрастания ID.
	// Отсутствующие товары просто не попадают в результат.
	LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	// DecrementStock списывает остаток; ErrInsufficientStock, если его не хватает.
	DecrementStock(ctx context.Context, productID int64, qty int, at time.Time) error
	// InsertOrder сохраняет заказ в статусе PENDING и возвращает его ID.
	InsertOrder(ctx context.Context, order Order) (int64, error)
	// InsertOrderItem возвращает ErrDuplicateOrderItem при повторе товара.
	InsertOrderItem(ctx context.Context, item OrderItem) error
	// ConfirmOrder переводит заказ в CONFIRMED и фиксирует сумму.
	ConfirmOrder(ctx context.Context, orderID int64, total decimal.Decimal) error
	// EnqueueOutbox кладёт событие в outbox в той же транзакции.
	EnqueueOutbox(ctx context.Context, msg OutboxMessage) error
}
