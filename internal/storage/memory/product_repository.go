package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает репозиторий товаров поверх общего Store.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

func (r *productRepositoryInMemory) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sellers[product.SellerID]; !ok {
		return domain.Product{}, fmt.Errorf("create product: seller %d: %w", product.SellerID, domain.ErrSellerNotFound)
	}

	now := s.now()
	s.lastProductID++
	product.ID = s.lastProductID
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)
	return cloneProduct(product), nil
}

func (r *productRepositoryInMemory) Get(ctx context.Context, id int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

func (r *productRepositoryInMemory) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, id := range sortedKeys(s.products) {
		product := s.products[id]
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		result = append(result, cloneProduct(product))
	}
	return result, nil
}

func (r *productRepositoryInMemory) Update(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	updated := cloneProduct(current)
	if err := patch.ApplyTo(&updated); err != nil {
		return domain.Product{}, err
	}
	if _, ok := s.sellers[updated.SellerID]; !ok {
		return domain.Product{}, fmt.Errorf("update product %d: seller %d: %w", id, updated.SellerID, domain.ErrSellerNotFound)
	}

	updated.UpdatedAt = s.now()
	s.products[id] = updated
	return cloneProduct(updated), nil
}

func (r *productRepositoryInMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	if s.productReferencedLocked(id) {
		return fmt.Errorf("delete product %d: %w", id, domain.ErrProductReferenced)
	}
	delete(s.products, id)
	return nil
}

func (r *productRepositoryInMemory) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, product := range s.products {
		seen[product.Category] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for category := range seen {
		result = append(result, category)
	}
	sort.Strings(result)
	return result, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
