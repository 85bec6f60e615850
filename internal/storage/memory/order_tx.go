package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

var errOrderNotInserted = errors.New("order is not inserted in this transaction")

type orderTransactorInMemory struct {
	store *Store
}

// NewOrderTransactor возвращает транзакционный unit of work для оформления заказов.
// Транзакция держит write-lock Store всё время выполнения, а изменения
// копятся в журнале и применяются только при успешном завершении.
func NewOrderTransactor(store *Store) domain.OrderTransactor {
	return &orderTransactorInMemory{store: store}
}

func (t *orderTransactorInMemory) WithinOrderTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &orderTx{
		store:   s,
		stock:   make(map[int64]int),
		touched: make(map[int64]time.Time),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commitLocked()
	return nil
}

// orderTx: журнал изменений одной транзакции.
type orderTx struct {
	store *Store

	stock   map[int64]int
	touched map[int64]time.Time
	order   *domain.Order
	items   []domain.OrderItem
	outbox  []domain.OutboxMessage
}

func (tx *orderTx) LockUser(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.store.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (tx *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := make(map[int64]domain.Product, len(sorted))
	for _, id := range sorted {
		product, ok := tx.store.products[id]
		if !ok {
			continue
		}
		product = cloneProduct(product)
		product.Stock = tx.currentStock(id)
		result[id] = product
	}
	return result, nil
}

func (tx *orderTx) DecrementStock(ctx context.Context, productID int64, qty int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.store.products[productID]; !ok {
		return domain.ErrProductNotFound
	}
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}
	current := tx.currentStock(productID)
	if current < qty {
		return domain.ErrInsufficientStock
	}
	tx.stock[productID] = current - qty
	tx.touched[productID] = at
	return nil
}

func (tx *orderTx) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if tx.order != nil {
		return 0, errors.New("order already inserted in this transaction")
	}
	if _, ok := tx.store.users[order.UserID]; !ok {
		return 0, domain.ErrUserNotFound
	}

	// Идентификатор расходуется даже при откате, как sequence в postgres.
	tx.store.lastOrderID++
	order.ID = tx.store.lastOrderID
	order.Items = nil
	tx.order = &order
	return order.ID, nil
}

func (tx *orderTx) InsertOrderItem(ctx context.Context, item domain.OrderItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.order == nil || tx.order.ID != item.OrderID {
		return errOrderNotInserted
	}
	if _, ok := tx.store.products[item.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	for _, existing := range tx.items {
		if existing.ProductID == item.ProductID {
			return fmt.Errorf("order %d product %d: %w", item.OrderID, item.ProductID, domain.ErrDuplicateOrderItem)
		}
	}
	tx.items = append(tx.items, item)
	return nil
}

func (tx *orderTx) ConfirmOrder(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.order == nil || tx.order.ID != orderID {
		return errOrderNotInserted
	}
	if tx.order.Status != domain.OrderStatusPending {
		return fmt.Errorf("confirm order %d: status %s", orderID, tx.order.Status)
	}
	tx.order.Status = domain.OrderStatusConfirmed
	tx.order.TotalAmount = total
	return nil
}

func (tx *orderTx) EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	tx.outbox = append(tx.outbox, msg)
	return nil
}

func (tx *orderTx) currentStock(productID int64) int {
	if staged, ok := tx.stock[productID]; ok {
		return staged
	}
	return tx.store.products[productID].Stock
}

func (tx *orderTx) commitLocked() {
	s := tx.store
	for id, stock := range tx.stock {
		product := s.products[id]
		product.Stock = stock
		product.UpdatedAt = tx.touched[id]
		s.products[id] = product
	}
	if tx.order != nil {
		s.orders[tx.order.ID] = *tx.order
		s.items[tx.order.ID] = append([]domain.OrderItem(nil), tx.items...)
	}
	for _, msg := range tx.outbox {
		s.enqueueOutboxLocked(msg)
	}
}

var _ domain.OrderTransactor = (*orderTransactorInMemory)(nil)
var _ domain.OrderTx = (*orderTx)(nil)
