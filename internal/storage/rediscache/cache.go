package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "shop:"
	dialTimeout   = 5 * time.Second
	ioTimeout     = 3 * time.Second
)

// Options описывает подключение к Redis.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Cache: кэш чтения каталога в Redis: товары по id и список категорий.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Open создаёт клиента Redis и проверяет соединение.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return New(client, opts.TTL, opts.Prefix), nil
}

// New оборачивает готового клиента.
func New(client *redis.Client, ttl time.Duration, prefix string) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// Ping проверяет доступность Redis для readiness.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close закрывает клиента.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// cachedProduct: представление товара в кэше; цена хранится строкой без потерь.
type cachedProduct struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	SellerID    int64     `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Cache) productKey(id int64) string {
	return c.prefix + "product:" + strconv.FormatInt(id, 10)
}

func (c *Cache) categoriesKey() string {
	return c.prefix + "categories"
}

// GetProduct возвращает товар из кэша; при промахе ok=false без ошибки.
func (c *Cache) GetProduct(ctx context.Context, id int64) (domain.Product, bool, error) {
	raw, err := c.client.Get(ctx, c.productKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, fmt.Errorf("redis get product %d: %w", id, err)
	}

	var cached cachedProduct
	if err := json.Unmarshal(raw, &cached); err != nil {
		return domain.Product{}, false, fmt.Errorf("decode cached product %d: %w", id, err)
	}
	price, err := decimal.NewFromString(cached.Price)
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("decode cached price %d: %w", id, err)
	}

	return domain.Product{
		ID:          cached.ID,
		Name:        cached.Name,
		Description: cached.Description,
		Price:       price,
		Stock:       cached.Stock,
		Category:    cached.Category,
		SellerID:    cached.SellerID,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}, true, nil
}

// SetProduct кладёт товар в кэш с TTL.
func (c *Cache) SetProduct(ctx context.Context, product domain.Product) error {
	raw, err := json.Marshal(cachedProduct{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.StringFixed(domain.MoneyScale),
		Stock:       product.Stock,
		Category:    product.Category,
		SellerID:    product.SellerID,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode product %d: %w", product.ID, err)
	}
	if err := c.client.Set(ctx, c.productKey(product.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product %d: %w", product.ID, err)
	}
	return nil
}

// DeleteProducts инвалидирует товары.
func (c *Cache) DeleteProducts(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete products: %w", err)
	}
	return nil
}

// GetCategories возвращает список категорий из кэша.
func (c *Cache) GetCategories(ctx context.Context) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.categoriesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get categories: %w", err)
	}
	var categories []string
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, false, fmt.Errorf("decode cached categories: %w", err)
	}
	return categories, true, nil
}

// SetCategories кладёт список категорий в кэш с TTL.
func (c *Cache) SetCategories(ctx context.Context, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	if err := c.client.Set(ctx, c.categoriesKey(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set categories: %w", err)
	}
	return nil
}

// DeleteCategories инвалидирует список категорий.
func (c *Cache) DeleteCategories(ctx context.Context) error {
	if err := c.client.Del(ctx, c.categoriesKey()).Err(); err != nil {
		return fmt.Errorf("redis delete categories: %w", err)
	}
	return nil
}

var _ domain.CatalogCache = (*Cache)(nil)
