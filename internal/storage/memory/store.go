package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Store: in-memory хранилище всех таблиц магазина для локальной разработки и тестов.
// Один RWMutex защищает все таблицы, поэтому транзакция заказа видит согласованное состояние.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users    map[int64]domain.User
	sellers  map[int64]domain.Seller
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64][]domain.OrderItem
	outbox   map[string]*outboxRecord

	lastUserID    int64
	lastSellerID  int64
	lastProductID int64
	lastOrderID   int64
	outboxSeq     int64
}

// StoreOption настраивает Store.
type StoreOption func(*Store)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт пустое хранилище.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[int64]domain.User),
		sellers:  make(map[int64]domain.Seller),
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		items:    make(map[int64][]domain.OrderItem),
		outbox:   make(map[string]*outboxRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping всегда успешен; нужен для readiness-проверки наравне с postgres.
func (s *Store) Ping() error {
	return nil
}

func (s *Store) userHasOrdersLocked(userID int64) bool {
	for _, order := range s.orders {
		if order.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Store) productReferencedLocked(productID int64) bool {
	for _, items := range s.items {
		for _, item := range items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *Store) orderWithItemsLocked(order domain.Order) domain.Order {
	items := s.items[order.ID]
	order.Items = append([]domain.OrderItem(nil), items...)
	return order
}

func sortedKeys[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUser(u domain.User) domain.User {
	u.FullName = cloneString(u.FullName)
	return u
}

func cloneProduct(p domain.Product) domain.Product {
	p.Description = cloneString(p.Description)
	return p
}
