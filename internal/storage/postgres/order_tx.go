package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type orderTransactor struct {
	store *Store
}

// NewOrderTransactor создаёт транзакционный unit of work оформления заказа.
// Пользователь блокируется FOR KEY SHARE, товары FOR UPDATE по возрастанию id,
// поэтому параллельные заказы на один товар сериализуют проверку и списание остатка.
func NewOrderTransactor(store *Store) domain.OrderTransactor {
	return &orderTransactor{store: store}
}

func (t *orderTransactor) WithinOrderTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	return t.store.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

type orderTx struct {
	tx       *sql.Tx
	position int
}

func (o *orderTx) LockUser(ctx context.Context, userID int64) error {
	var id int64
	err := o.tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR KEY SHARE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func (o *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := o.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, product := range products {
		result[product.ID] = product
	}
	return result, nil
}

func (o *orderTx) DecrementStock(ctx context.Context, productID int64, qty int, at time.Time) error {
	res, err := o.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = $3
		WHERE id = $1
		  AND stock >= $2
	`, productID, qty, at)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientStock
		}
		return fmt.Errorf("decrement stock: %w", err)
	}
	return expectAffected(res, domain.ErrInsufficientStock)
}

func (o *orderTx) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	var id int64
	err := o.tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, order.UserID, string(order.Status), order.TotalAmount, order.CreatedAt).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (o *orderTx) InsertOrderItem(ctx context.Context, item domain.OrderItem) error {
	o.position++
	_, err := o.tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5)
	`, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, o.position)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("order %d product %d: %w", item.OrderID, item.ProductID, domain.ErrDuplicateOrderItem)
		case isForeignKeyViolation(err) && violatedConstraint(err) == "order_items_product_id_fkey":
			return domain.ErrProductNotFound
		default:
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (o *orderTx) ConfirmOrder(ctx context.Context, orderID int64, total decimal.Decimal) error {
	res, err := o.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    total_amount = $3
		WHERE id = $1
		  AND status = $4
	`, orderID, string(domain.OrderStatusConfirmed), total, string(domain.OrderStatusPending))
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (o *orderTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	return insertOutbox(ctx, o.tx, prepareOutbox(msg, time.Now().UTC()))
}

var _ domain.OrderTransactor = (*orderTransactor)(nil)
var _ domain.OrderTx = (*orderTx)(nil)
