package domain

import (
	"context"
	"time"
)

// IntentLine — позиция заказа в терминах платёжного шлюза.
type IntentLine struct {
	Title     string
	UnitMinor int64
	Qty       int32
}

// IntentRequest — запрос на создание платёжного намерения.
type IntentRequest struct {
	OrderRef   string
	Lines      []IntentLine
	SuccessURL string
	FailureURL string
}

// PaymentIntent — созданное у шлюза намерение оплаты.
type PaymentIntent struct {
	ID          string
	RedirectURL string
}

// GatewayPayment — состояние платежа по данным шлюза.
type GatewayPayment struct {
	ID          string
	Status      PaymentStatus
	ExternalRef string
	AmountMinor int64
}

// PaymentGateway описывает внешний платёжный шлюз. Реализация обязана
// отклонять позиции с неположительной ценой/количеством и пустым наименованием.
// Шлюз считается ненадёжным: любой вызов может вернуть ErrGatewayUnavailable.
type PaymentGateway interface {
	// CreateIntent создаёт платёжное намерение для заказа.
	CreateIntent(ctx context.Context, req IntentRequest) (PaymentIntent, error)
	// GetPayment возвращает текущее состояние платежа или intent по идентификатору.
	GetPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
}

// OrderEvent — уведомление об изменении заказа для внешних потребителей.
type OrderEvent struct {
	Type       string
	OrderID    string
	BuyerID    string
	Status     OrderStatus
	OccurredAt time.Time
}

// Notifier доставляет уведомления покупателю/внешним системам.
// Вызывается вне транзакций; сбой доставки логируется и никогда
// не откатывает и не блокирует основную операцию.
type Notifier interface {
	Notify(ctx context.Context, event OrderEvent) error
}
