package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fakeCache struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	categories []string
	hasCats    bool
	failReads  bool
	hits       int
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: make(map[int64]domain.Product)}
}

func (c *fakeCache) GetProduct(_ context.Context, id int64) (domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return domain.Product{}, false, errors.New("cache down")
	}
	p, ok := c.products[id]
	if ok {
		c.hits++
	}
	return p, ok, nil
}

func (c *fakeCache) SetProduct(_ context.Context, product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
	return nil
}

func (c *fakeCache) DeleteProducts(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	return nil
}

func (c *fakeCache) GetCategories(context.Context) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return nil, false, errors.New("cache down")
	}
	if c.hasCats {
		c.hits++
	}
	return c.categories, c.hasCats, nil
}

func (c *fakeCache) SetCategories(_ context.Context, categories []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = categories
	c.hasCats = true
	return nil
}

func (c *fakeCache) DeleteCategories(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = nil
	c.hasCats = false
	return nil
}

var _ domain.CatalogCache = (*fakeCache)(nil)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store := memory.NewStore()
	return NewService(memory.NewSellerRepository(store), memory.NewProductRepository(store), opts...)
}

func createSeller(t *testing.T, svc *Service) domain.Seller {
	t.Helper()
	seller, err := svc.CreateSeller(context.Background(), CreateSellerInput{Name: "Acme", Email: "shop@acme.io"})
	require.NoError(t, err)
	return seller
}

func TestService_CreateSellerValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSeller(ctx, CreateSellerInput{Name: "", Email: "a@b.io"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateSeller(ctx, CreateSellerInput{Name: "Acme", Email: "nope"})
	require.ErrorIs(t, err, domain.ErrValidation)

	seller := createSeller(t, svc)
	_, err = svc.CreateSeller(ctx, CreateSellerInput{Name: "Other", Email: "SHOP@acme.io"})
	require.ErrorIs(t, err, domain.ErrSellerEmailTaken)

	sellers, err := svc.ListSellers(ctx)
	require.NoError(t, err)
	require.Len(t, sellers, 1)
	require.Equal(t, seller.ID, sellers[0].ID)
}

func TestService_CreateProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seller := createSeller(t, svc)

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Lamp", Price: decimal.RequireFromString("9.99"), Stock: 10, Category: "home", SellerID: seller.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), product.ID)
	require.Nil(t, product.Description)
	require.False(t, product.CreatedAt.IsZero())

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Bad", Price: decimal.RequireFromString("1.999"), Category: "home", SellerID: seller.ID,
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Orphan", Price: decimal.RequireFromString("1.00"), Category: "home", SellerID: 77,
	})
	require.ErrorIs(t, err, domain.ErrSellerNotFound)
}

func TestService_UpdateProductChangesOnlyGivenFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seller := createSeller(t, svc)

	desc := "brass"
	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Lamp", Description: &desc, Price: decimal.RequireFromString("9.99"), Stock: 10, Category: "home", SellerID: seller.ID,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, created.ID, domain.ProductPatch{Stock: domain.Some(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, "brass", *updated.Description)
	assert.True(t, created.Price.Equal(updated.Price))
	assert.Equal(t, created.Category, updated.Category)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	unchanged, err := svc.UpdateProduct(ctx, created.ID, domain.ProductPatch{})
	require.NoError(t, err)
	assert.Equal(t, 5, unchanged.Stock)

	_, err = svc.UpdateProduct(ctx, 404, domain.ProductPatch{Stock: domain.Some(1)})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestService_GetProductReadThroughAndInvalidation(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, WithCache(cache))
	ctx := context.Background()
	seller := createSeller(t, svc)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Lamp", Price: decimal.RequireFromString("9.99"), Stock: 10, Category: "home", SellerID: seller.ID,
	})
	require.NoError(t, err)

	_, err = svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)

	_, err = svc.UpdateProduct(ctx, created.ID, domain.ProductPatch{Stock: domain.Some(3)})
	require.NoError(t, err)
	_, cached := cache.products[created.ID]
	require.False(t, cached)

	got, err := svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Stock)

	require.NoError(t, svc.DeleteProduct(ctx, created.ID))
	_, err = svc.GetProduct(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestService_CacheFailureFallsBackToStore(t *testing.T) {
	cache := newFakeCache()
	cache.failReads = true
	svc := newTestService(t, WithCache(cache))
	ctx := context.Background()
	seller := createSeller(t, svc)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Lamp", Price: decimal.RequireFromString("9.99"), Category: "home", SellerID: seller.ID,
	})
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"home"}, categories)
}

func TestService_CategoriesAndFilter(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, WithCache(cache))
	ctx := context.Background()
	seller := createSeller(t, svc)

	for _, in := range []CreateProductInput{
		{Name: "Lamp", Category: "home"},
		{Name: "Ball", Category: "toys"},
		{Name: "Chair", Category: "home"},
	} {
		in.Price = decimal.RequireFromString("1.00")
		in.SellerID = seller.ID
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"home", "toys"}, categories)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Pen", Price: decimal.RequireFromString("1.00"), Category: "office", SellerID: seller.ID,
	})
	require.NoError(t, err)

	categories, err = svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"home", "office", "toys"}, categories)

	home, err := svc.ListProducts(ctx, domain.ProductFilter{Category: "home"})
	require.NoError(t, err)
	require.Len(t, home, 2)
	require.Equal(t, "Lamp", home[0].Name)
	require.Equal(t, "Chair", home[1].Name)

	none, err := svc.ListProducts(ctx, domain.ProductFilter{Category: "garden"})
	require.NoError(t, err)
	require.Empty(t, none)
}
