package catalog

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// CreateSellerInput: данные нового продавца.
type CreateSellerInput struct {
	Name  string
	Email string
}

// CreateProductInput: данные нового товара.
type CreateProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Category    string
	SellerID    int64
}

// Service управляет продавцами и товарами. Чтение товаров и категорий
// идёт через кэш, если он задан; ошибки кэша не ломают запрос.
type Service struct {
	sellers  domain.SellerRepository
	products domain.ProductRepository
	cache    domain.CatalogCache
	validate *validator.Validate
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает кэш чтения каталога.
func WithCache(cache domain.CatalogCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithValidator задаёт общий экземпляр validator.
func WithValidator(validate *validator.Validate) Option {
	return func(s *Service) {
		if validate != nil {
			s.validate = validate
		}
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(sellers domain.SellerRepository, products domain.ProductRepository, opts ...Option) *Service {
	s := &Service{
		sellers:  sellers,
		products: products,
		validate: validator.New(),
		logger:   log.WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSeller регистрирует продавца.
func (s *Service) CreateSeller(ctx context.Context, in CreateSellerInput) (domain.Seller, error) {
	seller := domain.Seller{
		Name:  strings.TrimSpace(in.Name),
		Email: domain.NormalizeEmail(in.Email),
	}
	if err := seller.Validate(); err != nil {
		return domain.Seller{}, err
	}
	if err := s.validate.Var(seller.Email, "email"); err != nil {
		return domain.Seller{}, domain.NewValidationError("email", "invalid email format")
	}

	created, err := s.sellers.Create(ctx, seller)
	if err != nil {
		return domain.Seller{}, err
	}
	s.logger.WithField("seller_id", created.ID).Info("seller created")
	return created, nil
}

// ListSellers возвращает продавцов по возрастанию ID.
func (s *Service) ListSellers(ctx context.Context) ([]domain.Seller, error) {
	return s.sellers.List(ctx)
}

// CreateProduct добавляет товар продавца.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	product := domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    strings.TrimSpace(in.Category),
		SellerID:    in.SellerID,
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCategories(ctx)
	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"seller_id":  created.SellerID,
	}).Info("product created")
	return created, nil
}

// GetProduct возвращает товар, используя кэш как read-through.
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("product_id", id).Warn("catalog cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, product); err != nil {
			s.logger.WithError(err).WithField("product_id", id).Warn("catalog cache write failed")
		}
	}
	return product, nil
}

// ListProducts возвращает товары, при необходимости отфильтрованные по категории.
func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	return s.products.List(ctx, filter)
}

// UpdateProduct применяет только переданные поля. Пустой патч возвращает товар без изменений.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	if patch.IsEmpty() {
		return s.products.Get(ctx, id)
	}

	updated, err := s.products.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateProducts(ctx, id)
	if patch.Category.IsSet() {
		s.invalidateCategories(ctx)
	}
	s.logger.WithField("product_id", id).Debug("product updated")
	return updated, nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateProducts(ctx, id)
	s.invalidateCategories(ctx)
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// Categories возвращает отсортированный список категорий без повторов.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetCategories(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("catalog cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	categories, err := s.products.Categories(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCategories(ctx, categories); err != nil {
			s.logger.WithError(err).Warn("catalog cache write failed")
		}
	}
	return categories, nil
}

func (s *Service) invalidateProducts(ctx context.Context, ids ...int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteProducts(ctx, ids...); err != nil {
		s.logger.WithError(err).WithField("product_ids", ids).Warn("catalog cache invalidation failed")
	}
}

func (s *Service) invalidateCategories(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCategories(ctx); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidation failed")
	}
}
