package httpsvc

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/users"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// defaultBodyLimit ограничивает тело запроса, в том числе буфер idempotent.
	defaultBodyLimit = "1M"
)

// UserService: операции над пользователями, нужные HTTP-слою.
type UserService interface {
	Create(ctx context.Context, in users.CreateUserInput) (domain.User, error)
	Get(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id int64, in users.UpdateUserInput) (domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogService: операции над продавцами и товарами.
type CatalogService interface {
	CreateSeller(ctx context.Context, in catalog.CreateSellerInput) (domain.Seller, error)
	ListSellers(ctx context.Context) ([]domain.Seller, error)
	CreateProduct(ctx context.Context, in catalog.CreateProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]string, error)
}

// OrderService: оформление и чтение заказов.
type OrderService interface {
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// Server: HTTP API магазина поверх echo.
type Server struct {
	echo     *echo.Echo
	users    UserService
	catalog  CatalogService
	orders   OrderService
	validate *validator.Validate
	logger   *log.Entry
	metrics  *metrics.HTTPMetrics
	guard    *idempotency.Guard
	timeout  time.Duration
}

// Option настраивает Server.
type Option func(*Server)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает HTTP-метрики.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithIdempotency включает поддержку Idempotency-Key для POST /orders.
func WithIdempotency(guard *idempotency.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithRequestTimeout задаёт таймаут обработки одного запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewServer собирает echo-роутер со всеми маршрутами API.
func NewServer(userSvc UserService, catalogSvc CatalogService, orderSvc OrderService, opts ...Option) *Server {
	s := &Server{
		users:    userSvc,
		catalog:  catalogSvc,
		orders:   orderSvc,
		validate: newValidator(),
		logger:   log.WithField("component", "http"),
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(s.logger)
	e.Use(middleware.RequestID())
	e.Use(observe(s.logger, s.metrics))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(defaultBodyLimit))
	e.Use(requestTimeout(s.timeout))

	s.echo = e
	s.routes()
	return s
}

// Handler возвращает http.Handler для http.Server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.welcome)
	e.GET("/health", s.health)

	e.POST("/users", s.createUser)
	e.GET("/users", s.listUsers)
	e.GET("/users/:id", s.getUser)
	e.PUT("/users/:id", s.updateUser)
	e.DELETE("/users/:id", s.deleteUser)

	e.POST("/sellers", s.createSeller)
	e.GET("/sellers", s.listSellers)

	e.POST("/products", s.createProduct)
	e.GET("/products", s.listProducts)
	e.GET("/products/by-category/:category", s.listProductsByCategory)
	e.GET("/products/:id", s.getProduct)
	e.PUT("/products/:id", s.updateProduct)
	e.DELETE("/products/:id", s.deleteProduct)
	e.GET("/categories", s.listCategories)

	e.POST("/orders", s.createOrder, idempotent(s.guard, s.logger))
	e.GET("/orders", s.listOrders)
	e.GET("/orders/:id", s.getOrder)
}

func (s *Server) welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to the shop API"})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bind декодирует тело и прогоняет validate-теги.
func (s *Server) bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return s.validate.Struct(dst)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
