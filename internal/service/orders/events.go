package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OrderConfirmedEvent: payload события order.confirmed в outbox.
// Суммы передаются строками, чтобы не терять точность.
type OrderConfirmedEvent struct {
	OrderID     int64                `json:"order_id"`
	UserID      int64                `json:"user_id"`
	Status      string               `json:"status"`
	TotalAmount string               `json:"total_amount"`
	Items       []OrderConfirmedItem `json:"items"`
	CreatedAt   time.Time            `json:"created_at"`
}

// OrderConfirmedItem: позиция в событии order.confirmed.
type OrderConfirmedItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func newOrderConfirmedMessage(order domain.Order, at time.Time) (domain.OutboxMessage, error) {
	event := OrderConfirmedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount.StringFixed(domain.MoneyScale),
		Items:       make([]OrderConfirmedItem, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderConfirmedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(domain.MoneyScale),
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxMessage{}, err
	}

	return domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     domain.EventTypeOrderConfirmed,
		Payload:       payload,
		CreatedAt:     at,
	}, nil
}
