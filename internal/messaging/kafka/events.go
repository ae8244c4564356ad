package kafka

import "time"

// Topic для событий заказов.
const TopicOrderEvents = "shop.order.events"

// Типы событий жизненного цикла заказа.
const (
	EventTypeOrderCreated     = "order.created"
	EventTypeOrderCancelled   = "order.cancelled"
	EventTypePaymentInitiated = "payment.initiated"
	EventTypeStatusChanged    = "order.status_changed"
)

// OrderEvent — событие заказа во внешнем контракте.
type OrderEvent struct {
	EventType string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	BuyerID   string    `json:"buyer_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
