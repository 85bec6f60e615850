package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Service оформляет заказы и отдаёт их на чтение.
type Service struct {
	orders  domain.OrderRepository
	tx      domain.OrderTransactor
	cache   domain.CatalogCache
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	now     func() time.Time

	outboxEvents  bool
	cacheRedelete time.Duration
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает метрики оформления заказов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache задаёт кэш каталога, который нужно инвалидировать после списания остатков.
func WithCache(cache domain.CatalogCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCacheRedelete повторяет инвалидацию кэша через delay после фиксации заказа.
// Повтор убирает запись, которую параллельное чтение каталога положило в кэш
// со снимком остатка до коммита.
func WithCacheRedelete(delay time.Duration) Option {
	return func(s *Service) {
		if delay >= 0 {
			s.cacheRedelete = delay
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOutboxEvents включает или выключает запись order.confirmed в outbox.
func WithOutboxEvents(enabled bool) Option {
	return func(s *Service) {
		s.outboxEvents = enabled
	}
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, tx domain.OrderTransactor, opts ...Option) *Service {
	s := &Service{
		orders:       orders,
		tx:           tx,
		logger:       log.WithField("component", "orders"),
		now:          func() time.Time { return time.Now().UTC() },
		outboxEvents: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder атомарно оформляет заказ: проверяет пользователя, затем по порядку
// строк наличие товара и остаток, списывает остатки, фиксирует цены и сумму.
// Любая ошибка откатывает транзакцию целиком.
func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordPlaceStarted()
		defer func() {
			s.metrics.RecordPlaceFinished(time.Since(start))
		}()
	}

	logger := s.logger.WithField("user_id", req.UserID)

	if err := req.Validate(); err != nil {
		s.recordRejected(err)
		return domain.Order{}, err
	}

	var placed domain.Order
	err := s.tx.WithinOrderTx(ctx, func(tx domain.OrderTx) error {
		order, err := s.placeWithinTx(ctx, tx, req)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		s.recordRejected(err)
		if domain.IsOrderRejected(err) {
			logger.WithError(err).Info("order rejected")
		} else {
			logger.WithError(err).Error("order placement failed")
		}
		return domain.Order{}, err
	}

	productIDs := req.ProductIDs()
	s.invalidateProducts(ctx, productIDs)
	s.scheduleRedelete(ctx, productIDs)

	if s.metrics != nil {
		s.metrics.RecordPlaced(len(placed.Items))
		if s.outboxEvents {
			s.metrics.RecordOutboxEvent()
		}
	}
	logger.WithFields(log.Fields{
		"order_id":     placed.ID,
		"items":        len(placed.Items),
		"total_amount": placed.TotalAmount.StringFixed(domain.MoneyScale),
	}).Info("order confirmed")

	return placed, nil
}

func (s *Service) placeWithinTx(ctx context.Context, tx domain.OrderTx, req domain.PlaceOrderRequest) (domain.Order, error) {
	if err := tx.LockUser(ctx, req.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Order{}, domain.RejectUnknownUser(req.UserID)
		}
		return domain.Order{}, fmt.Errorf("lock user %d: %w", req.UserID, err)
	}

	products, err := tx.LockProducts(ctx, req.ProductIDs())
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock products: %w", err)
	}

	now := s.now()
	order := domain.Order{
		UserID:      req.UserID,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
	}
	orderID, err := tx.InsertOrder(ctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Order{}, domain.RejectUnknownUser(req.UserID)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	order.ID = orderID

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return domain.Order{}, domain.RejectUnknownProduct(line.ProductID)
		}
		if product.Stock < line.Quantity {
			return domain.Order{}, domain.RejectInsufficientStock(line.ProductID)
		}

		if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity, now); err != nil {
			return domain.Order{}, rejectFromStore(err, line.ProductID)
		}
		product.Stock -= line.Quantity
		products[line.ProductID] = product

		item := domain.OrderItem{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		}
		if err := tx.InsertOrderItem(ctx, item); err != nil {
			return domain.Order{}, rejectFromStore(err, line.ProductID)
		}

		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	if total.GreaterThan(domain.MaxMoney) {
		return domain.Order{}, domain.NewValidationError("total_amount", "must not exceed 9999999999.99")
	}
	if err := tx.ConfirmOrder(ctx, orderID, total); err != nil {
		return domain.Order{}, fmt.Errorf("confirm order %d: %w", orderID, err)
	}
	order.Status = domain.OrderStatusConfirmed
	order.TotalAmount = total
	order.Items = items

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order %d invariants: %w", orderID, errors.Join(errs...))
	}

	if s.outboxEvents {
		msg, err := newOrderConfirmedMessage(order, now)
		if err != nil {
			return domain.Order{}, fmt.Errorf("encode order event: %w", err)
		}
		if err := tx.EnqueueOutbox(ctx, msg); err != nil {
			return domain.Order{}, fmt.Errorf("enqueue order event: %w", err)
		}
	}

	return order, nil
}

// GetOrder возвращает заказ с позициями.
func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// ListOrders возвращает все заказы с позициями по возрастанию ID.
func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// rejectFromStore переводит ошибки хранилища по конкретной строке в бизнес-отказ.
func rejectFromStore(err error, productID int64) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return domain.RejectInsufficientStock(productID)
	case errors.Is(err, domain.ErrProductNotFound):
		return domain.RejectUnknownProduct(productID)
	case errors.Is(err, domain.ErrDuplicateOrderItem):
		return domain.RejectDuplicateItem(productID)
	default:
		return fmt.Errorf("product %d: %w", productID, err)
	}
}

func (s *Service) recordRejected(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRejected(rejectReason(err))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return metrics.RejectReasonValidation
	case errors.Is(err, domain.ErrUserNotFound):
		return metrics.RejectReasonUserNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.RejectReasonProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.RejectReasonInsufficientStock
	case errors.Is(err, domain.ErrDuplicateOrderItem):
		return metrics.RejectReasonDuplicateItem
	default:
		return metrics.RejectReasonStoreError
	}
}

func (s *Service) invalidateProducts(ctx context.Context, ids []int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.DeleteProducts(ctx, ids...); err != nil {
		s.logger.WithError(err).WithField("product_ids", ids).Warn("catalog cache invalidation failed")
	}
}

func (s *Service) scheduleRedelete(ctx context.Context, ids []int64) {
	if s.cache == nil || s.cacheRedelete <= 0 || len(ids) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	time.AfterFunc(s.cacheRedelete, func() {
		s.invalidateProducts(ctx, ids)
	})
}
