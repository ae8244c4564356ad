package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резервирование и оплата ещё не выполнялись.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusAwaitingPayment — сток зарезервирован, ждём исход от платёжного шлюза.
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	// OrderStatusPaid — оплата подтверждена, резерв превращён в постоянное списание.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusRejected — шлюз отклонил платёж, резерв снят.
	OrderStatusRejected OrderStatus = "rejected"
	// OrderStatusCancelledByGateway — шлюз отменил платёж, резерв снят.
	OrderStatusCancelledByGateway OrderStatus = "cancelled_by_gateway"
	// OrderStatusCancelledByAdmin — заказ отменён администратором, корзина не восстанавливается.
	OrderStatusCancelledByAdmin OrderStatus = "cancelled_by_admin"
	// OrderStatusError — исход неизвестен после TTL или при сбое шлюза.
	// Резерв намеренно удерживается до ручного разбора оператором.
	OrderStatusError OrderStatus = "error"
	// OrderStatusExpired — sweeper увидел, что intent протух у шлюза; резерв снят.
	OrderStatusExpired OrderStatus = "expired"
	// OrderStatusShipped — оплаченный заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
)

// minShippingAddressLen — минимальная длина адреса доставки.
const minShippingAddressLen = 10

// transitions — единственный источник истины о допустимых переходах статусов.
// Любая ветка кода, меняющая статус, обязана пройти через CanTransition.
var transitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusPending: {
		OrderStatusAwaitingPayment:  {},
		OrderStatusCancelledByAdmin: {},
	},
	OrderStatusAwaitingPayment: {
		OrderStatusPaid:               {},
		OrderStatusRejected:           {},
		OrderStatusCancelledByGateway: {},
		OrderStatusCancelledByAdmin:   {},
		OrderStatusError:              {},
		OrderStatusExpired:            {},
	},
	OrderStatusError: {
		OrderStatusPaid:             {},
		OrderStatusCancelledByAdmin: {},
	},
	OrderStatusPaid: {
		OrderStatusShipped: {},
	},
	OrderStatusShipped: {
		OrderStatusDelivered: {},
	},
	OrderStatusRejected:           {},
	OrderStatusCancelledByGateway: {},
	OrderStatusCancelledByAdmin:   {},
	OrderStatusExpired:            {},
	OrderStatusDelivered:          {},
}

// Valid проверяет, что статус относится к известным значениям.
func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition сообщает, допускает ли таблица переход s → to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	targets, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Terminal сообщает, что из статуса нет дальнейших автоматических переходов.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusRejected, OrderStatusCancelledByGateway,
		OrderStatusCancelledByAdmin, OrderStatusExpired, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// HoldsReservation сообщает, удерживает ли заказ в этом статусе резерв стока.
// Инвариант: каждый переход из такого статуса либо commit-ит, либо release-ит
// все позиции в той же транзакции, что и смена статуса.
func (s OrderStatus) HoldsReservation() bool {
	return s == OrderStatusAwaitingPayment || s == OrderStatusError
}

// OrderLine представляет одну позицию заказа.
// Цена и наименование — снимок на момент создания заказа: последующие изменения
// каталога не влияют на существующий заказ.
type OrderLine struct {
	ID         string
	OrderID    string
	ProductID  string
	Title      string
	Qty        int32
	PriceMinor int64
	CreatedAt  time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	BuyerID         string
	Status          OrderStatus
	ShippingAddress string
	// PaymentIntentID — идентификатор intent у шлюза; пустой, пока оплата не инициирована.
	PaymentIntentID string
	// ExpiresAt задан только пока резервирование не разрешено (awaiting_payment/error).
	ExpiresAt *time.Time
	Lines     []OrderLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AmountMinor возвращает сумму заказа по снимкам цен позиций.
func (o *Order) AmountMinor() int64 {
	var total int64
	for _, line := range o.Lines {
		total += int64(line.Qty) * line.PriceMinor
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if len(strings.TrimSpace(o.ShippingAddress)) < minShippingAddressLen {
		errs = append(errs, ErrShippingAddressInvalid)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrCartEmpty)
	}
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrQtyInvalid)
		}
		if line.PriceMinor <= 0 {
			errs = append(errs, ErrPriceInvalid)
		}
		if line.Title == "" {
			errs = append(errs, ErrTitleRequired)
		}
	}

	return errs
}
