package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type sellerRepositoryInMemory struct {
	store *Store
}

// NewSellerRepository возвращает репозиторий продавцов поверх общего Store.
func NewSellerRepository(store *Store) domain.SellerRepository {
	return &sellerRepositoryInMemory{store: store}
}

func (r *sellerRepositoryInMemory) Create(ctx context.Context, seller domain.Seller) (domain.Seller, error) {
	if err := ctx.Err(); err != nil {
		return domain.Seller{}, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sellers {
		if existing.Email == seller.Email {
			return domain.Seller{}, fmt.Errorf("create seller: %w", domain.ErrSellerEmailTaken)
		}
	}

	s.lastSellerID++
	seller.ID = s.lastSellerID
	seller.CreatedAt = s.now()
	s.sellers[seller.ID] = seller
	return seller, nil
}

func (r *sellerRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Seller, error) {
	if err := ctx.Err(); err != nil {
		return domain.Seller{}, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	seller, ok := s.sellers[id]
	if !ok {
		return domain.Seller{}, domain.ErrSellerNotFound
	}
	return seller, nil
}

func (r *sellerRepositoryInMemory) List(ctx context.Context) ([]domain.Seller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Seller, 0, len(s.sellers))
	for _, id := range sortedKeys(s.sellers) {
		result = append(result, s.sellers[id])
	}
	return result, nil
}

var _ domain.SellerRepository = (*sellerRepositoryInMemory)(nil)
