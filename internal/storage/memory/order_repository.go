package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает репозиторий чтения заказов поверх общего Store.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

func (r *orderRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.orderWithItemsLocked(order), nil
}

func (r *orderRepositoryInMemory) List(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, id := range sortedKeys(s.orders) {
		result = append(result, s.orderWithItemsLocked(s.orders[id]))
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
