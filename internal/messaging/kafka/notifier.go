package kafka

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// eventTypes транслирует внутренние типы событий во внешний контракт.
var eventTypes = map[string]string{
	"OrderCreated":       EventTypeOrderCreated,
	"OrderCancelled":     EventTypeOrderCancelled,
	"PaymentInitiated":   EventTypePaymentInitiated,
	"OrderStatusChanged": EventTypeStatusChanged,
}

// Notifier публикует события заказов в Kafka.
type Notifier struct {
	producer *Producer
	logger   *log.Entry
}

// NewNotifier создает Kafka-нотификатор.
func NewNotifier(producer *Producer, logger *log.Entry) *Notifier {
	if logger == nil {
		logger = log.WithField("component", "kafka-notifier")
	}
	return &Notifier{producer: producer, logger: logger}
}

// Notify публикует событие заказа в topic событий.
func (n *Notifier) Notify(ctx context.Context, event domain.OrderEvent) error {
	eventType, ok := eventTypes[event.Type]
	if !ok {
		eventType = event.Type
	}

	return n.producer.Publish(TopicOrderEvents, event.OrderID, OrderEvent{
		EventType: eventType,
		OrderID:   event.OrderID,
		BuyerID:   event.BuyerID,
		Status:    string(event.Status),
		Timestamp: event.OccurredAt,
	})
}

// LogNotifier пишет события в лог. Используется, когда Kafka не настроена.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создает лог-нотификатор.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify пишет событие в лог и всегда успешен.
func (n *LogNotifier) Notify(ctx context.Context, event domain.OrderEvent) error {
	n.logger.WithFields(log.Fields{
		"event":    event.Type,
		"order_id": event.OrderID,
		"buyer_id": event.BuyerID,
		"status":   event.Status,
	}).Info("order event")
	return nil
}

var _ domain.Notifier = (*Notifier)(nil)
var _ domain.Notifier = (*LogNotifier)(nil)
