package domain

import "time"

// PaymentStatus зеркалирует словарь статусов платёжного шлюза.
type PaymentStatus string

const (
	// PaymentStatusApproved — платёж подтверждён, деньги списаны.
	PaymentStatusApproved PaymentStatus = "approved"
	// PaymentStatusRejected — шлюз отклонил платёж.
	PaymentStatusRejected PaymentStatus = "rejected"
	// PaymentStatusPending — платёж создан, но ещё не обработан.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusInProcess — шлюз обрабатывает платёж.
	PaymentStatusInProcess PaymentStatus = "in_process"
	// PaymentStatusCancelled — платёж отменён на стороне шлюза.
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusOther — статус, который мы не умеем интерпретировать.
	PaymentStatusOther PaymentStatus = "other"
)

// Terminal сообщает, является ли статус платежа окончательным для шлюза.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus нормализует строку шлюза к известным значениям.
// Неизвестные строки схлопываются в PaymentStatusOther, а не в ошибку:
// новый статус провайдера не должен ронять обработку событий.
func ParsePaymentStatus(raw string) PaymentStatus {
	switch PaymentStatus(raw) {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusPending,
		PaymentStatusInProcess, PaymentStatusCancelled:
		return PaymentStatus(raw)
	default:
		return PaymentStatusOther
	}
}

// Payment описывает зафиксированный у нас исход платёжной попытки.
// ExternalID уникален на всю систему и служит ключом идемпотентности:
// повторная доставка события с тем же ID схлопывается в no-op.
type Payment struct {
	ID          string
	OrderID     string
	ExternalID  string
	Status      PaymentStatus
	AmountMinor int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.ExternalID == "" {
		errs = append(errs, ErrExternalIDRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}
