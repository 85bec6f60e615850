package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	httpsvc "github.com/vladislavdragonenkov/shop/internal/service/http"
	"github.com/vladislavdragonenkov/shop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shop/internal/service/orders"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
	"github.com/vladislavdragonenkov/shop/internal/service/users"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

var _ domain.OutboxPublisher = (*recordingPublisher)(nil)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) snapshot() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.messages...)
}

// ShopLifecycleTestSuite прогоняет HTTP API магазина поверх in-memory хранилища.
type ShopLifecycleTestSuite struct {
	suite.Suite
	server    *httptest.Server
	products  domain.ProductRepository
	orders    domain.OrderRepository
	worker    *outbox.Worker
	publisher *recordingPublisher
}

func (suite *ShopLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	store := memory.NewStore()
	suite.products = memory.NewProductRepository(store)
	suite.orders = memory.NewOrderRepository(store)
	registry := prometheus.NewRegistry()

	userSvc := users.NewService(memory.NewUserRepository(store),
		users.WithHasher(users.BcryptHasher{Cost: bcrypt.MinCost}),
		users.WithLogger(logger),
	)
	catalogSvc := catalog.NewService(memory.NewSellerRepository(store), suite.products, catalog.WithLogger(logger))
	orderSvc := orders.NewService(suite.orders, memory.NewOrderTransactor(store),
		orders.WithLogger(logger),
		orders.WithMetrics(metrics.NewOrderMetricsWithRegisterer(registry)),
	)

	api := httpsvc.NewServer(userSvc, catalogSvc, orderSvc,
		httpsvc.WithLogger(logger),
		httpsvc.WithMetrics(metrics.NewHTTPMetricsWithRegisterer(registry)),
		httpsvc.WithIdempotency(idempotency.NewGuard(memory.NewIdempotencyRepository())),
	)
	suite.server = httptest.NewServer(api.Handler())

	suite.publisher = &recordingPublisher{}
	suite.worker = outbox.NewWorker(memory.NewOutboxRepository(store), suite.publisher, outbox.WithLogger(logger))
}

func (suite *ShopLifecycleTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *ShopLifecycleTestSuite) request(method, path string, body any, headers ...string) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, suite.server.URL+path, reader)
	suite.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := suite.server.Client().Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	return resp.StatusCode, data
}

func (suite *ShopLifecycleTestSuite) createID(path string, body any) int64 {
	status, data := suite.request(http.MethodPost, path, body)
	suite.Require().Equal(http.StatusCreated, status, string(data))

	var created struct {
		ID int64 `json:"id"`
	}
	suite.Require().NoError(json.Unmarshal(data, &created))
	return created.ID
}

func (suite *ShopLifecycleTestSuite) seedCatalog() (userID, sellerID int64) {
	userID = suite.createID("/users", map[string]any{"email": "buyer@shop.io", "password": "secret1"})
	sellerID = suite.createID("/sellers", map[string]any{"name": "Acme", "email": "acme@shop.io"})
	return userID, sellerID
}

func (suite *ShopLifecycleTestSuite) createProduct(sellerID int64, name, price string, stock int) int64 {
	return suite.createID("/products", map[string]any{
		"name":      name,
		"price":     json.Number(price),
		"stock":     stock,
		"category":  "general",
		"seller_id": sellerID,
	})
}

func (suite *ShopLifecycleTestSuite) stock(id int64) int {
	product, err := suite.products.Get(context.Background(), id)
	suite.Require().NoError(err)
	return product.Stock
}

func (suite *ShopLifecycleTestSuite) TestOrderLifecyclePublishesConfirmedEvent() {
	userID, sellerID := suite.seedCatalog()
	apple := suite.createProduct(sellerID, "Apple", "9.99", 10)
	pear := suite.createProduct(sellerID, "Pear", "0.10", 100)

	status, data := suite.request(http.MethodPost, "/orders", map[string]any{
		"user_id": userID,
		"items": []map[string]any{
			{"product_id": apple, "quantity": 2},
			{"product_id": pear, "quantity": 3},
		},
	})
	suite.Require().Equal(http.StatusCreated, status, string(data))
	suite.Contains(string(data), `"total_amount":20.28`)

	var order struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	suite.Require().NoError(json.Unmarshal(data, &order))
	suite.Equal(string(domain.OrderStatusConfirmed), order.Status)
	suite.Equal(8, suite.stock(apple))
	suite.Equal(97, suite.stock(pear))

	result := suite.worker.ProcessOnce(context.Background())
	suite.Equal(1, result.Sent)

	published := suite.publisher.snapshot()
	suite.Require().Len(published, 1)
	suite.Equal(domain.EventTypeOrderConfirmed, published[0].EventType)
	suite.Equal(fmt.Sprint(order.ID), published[0].AggregateID)

	var event orders.OrderConfirmedEvent
	suite.Require().NoError(json.Unmarshal(published[0].Payload, &event))
	suite.Equal("20.28", event.TotalAmount)
	suite.Len(event.Items, 2)

	suite.Equal(0, suite.worker.ProcessOnce(context.Background()).Sent)
}

func (suite *ShopLifecycleTestSuite) TestAtomicRollbackOnMiddleLine() {
	userID, sellerID := suite.seedCatalog()
	first := suite.createProduct(sellerID, "First", "1.00", 5)
	middle := suite.createProduct(sellerID, "Middle", "2.00", 1)
	last := suite.createProduct(sellerID, "Last", "3.00", 5)

	status, data := suite.request(http.MethodPost, "/orders", map[string]any{
		"user_id": userID,
		"items": []map[string]any{
			{"product_id": first, "quantity": 1},
			{"product_id": middle, "quantity": 2},
			{"product_id": last, "quantity": 1},
		},
	})
	suite.Equal(http.StatusBadRequest, status)
	suite.JSONEq(fmt.Sprintf(`{"detail":"insufficient stock for product %d"}`, middle), string(data))

	suite.Equal(5, suite.stock(first))
	suite.Equal(1, suite.stock(middle))
	suite.Equal(5, suite.stock(last))

	list, err := suite.orders.List(context.Background())
	suite.Require().NoError(err)
	suite.Empty(list)
	suite.Equal(0, suite.worker.ProcessOnce(context.Background()).Sent)
}

func (suite *ShopLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	userID, sellerID := suite.seedCatalog()
	product := suite.createProduct(sellerID, "Limited", "5.00", 10)

	const buyers = 25
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := suite.request(http.MethodPost, "/orders", map[string]any{
				"user_id": userID,
				"items":   []map[string]any{{"product_id": product, "quantity": 1}},
			})
			switch status {
			case http.StatusCreated:
				succeeded.Add(1)
			case http.StatusBadRequest:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	suite.Equal(int32(10), succeeded.Load())
	suite.Equal(int32(buyers-10), rejected.Load())
	suite.Equal(0, suite.stock(product))

	list, err := suite.orders.List(context.Background())
	suite.Require().NoError(err)
	suite.Len(list, 10)
}

func (suite *ShopLifecycleTestSuite) TestIdempotentRetryDoesNotDoubleCharge() {
	userID, sellerID := suite.seedCatalog()
	product := suite.createProduct(sellerID, "Widget", "4.50", 10)

	body := map[string]any{
		"user_id": userID,
		"items":   []map[string]any{{"product_id": product, "quantity": 4}},
	}
	status, first := suite.request(http.MethodPost, "/orders", body, httpsvc.IdempotencyKeyHeader, "retry-1")
	suite.Require().Equal(http.StatusCreated, status)

	status, second := suite.request(http.MethodPost, "/orders", body, httpsvc.IdempotencyKeyHeader, "retry-1")
	suite.Equal(http.StatusCreated, status)
	suite.JSONEq(string(first), string(second))
	suite.Equal(6, suite.stock(product))
}

func (suite *ShopLifecycleTestSuite) TestCatalogMaintenance() {
	_, sellerID := suite.seedCatalog()
	product := suite.createProduct(sellerID, "Lamp", "15.00", 3)

	status, data := suite.request(http.MethodPut, fmt.Sprintf("/products/%d", product), map[string]any{"category": "lighting"})
	suite.Require().Equal(http.StatusOK, status, string(data))

	status, data = suite.request(http.MethodGet, "/categories", nil)
	suite.Require().Equal(http.StatusOK, status)
	suite.JSONEq(`["lighting"]`, string(data))

	status, _ = suite.request(http.MethodDelete, fmt.Sprintf("/products/%d", product), nil)
	suite.Equal(http.StatusNoContent, status)

	status, _ = suite.request(http.MethodGet, fmt.Sprintf("/products/%d", product), nil)
	suite.Equal(http.StatusNotFound, status)
}

func TestShopLifecycleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration suite in short mode")
	}
	suite.Run(t, new(ShopLifecycleTestSuite))
}

