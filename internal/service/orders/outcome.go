package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Source обозначает канал, через который пришёл платёжный исход.
// От канала зависит трактовка отмены: отмена, замеченная sweeper-ом после
// истечения TTL, фиксируется как expired, а не cancelled_by_gateway.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceVerify  Source = "verify"
	SourceSweep   Source = "sweep"
)

// ApplyOutcome применяет терминальный исход платежа, привязывая заказ по
// внешней ссылке события.
func (s *Service) ApplyOutcome(ctx context.Context, source Source, payment domain.GatewayPayment) error {
	if payment.ExternalRef == "" {
		return domain.ErrUnknownOrderRef
	}
	return s.applyOutcome(ctx, source, payment.ExternalRef, payment)
}

// applyOutcome применяет исход платежа к конкретному заказу.
//
// Идемпотентность двухступенчатая: быстрая проверка по external_id и,
// на случай гонки доставок, уникальный индекс в хранилище. Повторная
// доставка возвращает ErrAlreadyProcessed; для вызывающего это no-op.
// Смена статуса, запись платежа и работа со стоком — одна транзакция.
func (s *Service) applyOutcome(ctx context.Context, source Source, orderID string, payment domain.GatewayPayment) error {
	if payment.ID == "" {
		return domain.ErrExternalIDRequired
	}

	var target domain.OrderStatus
	var applied bool
	var order domain.Order

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Payments().GetByExternalID(ctx, payment.ID); err == nil {
			return domain.ErrAlreadyProcessed
		} else if !errors.Is(err, domain.ErrPaymentNotFound) {
			return err
		}

		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return domain.ErrUnknownOrderRef
			}
			return err
		}

		// Нетерминальный статус фиксируется только в истории: строка платежа
		// не пишется, чтобы не занять ключ идемпотентности до финального исхода.
		if !payment.Status.Terminal() {
			return s.appendTimeline(ctx, tx, orderID, "PaymentPending", string(payment.Status))
		}

		if payment.AmountMinor > 0 && payment.AmountMinor != order.AmountMinor() {
			s.logger.WithFields(log.Fields{
				"order_id":     orderID,
				"external_id":  payment.ID,
				"order_amount": order.AmountMinor(),
				"event_amount": payment.AmountMinor,
			}).Warn("payment amount differs from order amount")
		}

		now := s.now()
		record := domain.Payment{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ExternalID:  payment.ID,
			Status:      payment.Status,
			AmountMinor: payment.AmountMinor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Payments().Insert(ctx, record); err != nil {
			return err
		}

		target = targetStatus(source, payment.Status)
		from := order.Status

		if !from.CanTransition(target) {
			// Поздний исход: заказ уже разрешён другим каналом. Платёж
			// зафиксирован для аудита, статус не трогаем.
			s.logger.WithFields(log.Fields{
				"order_id":    orderID,
				"external_id": payment.ID,
				"status":      from,
				"outcome":     payment.Status,
			}).Warn("late payment outcome, order already settled")
			return s.appendTimeline(ctx, tx, orderID, "LatePaymentOutcome", string(payment.Status))
		}

		switch target {
		case domain.OrderStatusPaid:
			if err := s.commitOrderLines(ctx, tx, &order); err != nil {
				return err
			}
		default:
			if from.HoldsReservation() {
				released, err := s.releaseOrderLines(ctx, tx, &order)
				if err != nil {
					return err
				}
				if err := s.carts.Restore(ctx, tx, order.BuyerID, released); err != nil {
					return err
				}
			}
		}

		if err := tx.Orders().UpdateStatus(ctx, orderID, from, target, nil); err != nil {
			return err
		}
		order.Status = target
		order.ExpiresAt = nil
		applied = true
		return s.appendTimeline(ctx, tx, orderID, "PaymentOutcomeApplied", string(payment.Status)+" via "+string(source))
	})
	if err != nil {
		return err
	}

	if applied {
		s.recordTransition(target)
		s.logger.WithFields(log.Fields{
			"order_id":    orderID,
			"external_id": payment.ID,
			"status":      target,
			"source":      source,
		}).Info("payment outcome applied")
		s.notify(ctx, "OrderStatusChanged", &order)
	}
	return nil
}

// targetStatus транслирует терминальный статус шлюза в статус заказа.
func targetStatus(source Source, status domain.PaymentStatus) domain.OrderStatus {
	switch status {
	case domain.PaymentStatusApproved:
		return domain.OrderStatusPaid
	case domain.PaymentStatusRejected:
		return domain.OrderStatusRejected
	case domain.PaymentStatusCancelled:
		if source == SourceSweep {
			return domain.OrderStatusExpired
		}
		return domain.OrderStatusCancelledByGateway
	default:
		return domain.OrderStatusError
	}
}

// ListExpired возвращает заказы в awaiting_payment с истёкшим дедлайном.
func (s *Service) ListExpired(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var listErr error
		ids, listErr = tx.Orders().ListExpiredAwaiting(ctx, s.now(), limit)
		return listErr
	})
	return ids, err
}

// ReconcileExpired сверяет просроченный заказ со шлюзом и разрешает его.
//
// Терминальный исход применяется как обычное платёжное событие (отмена после
// TTL фиксируется как expired). Неизвестный или нетерминальный исход после
// TTL переводит заказ в error с удержанием резерва до ручного разбора.
// Недоступность шлюза оставляет заказ как есть до следующего прохода.
func (s *Service) ReconcileExpired(ctx context.Context, orderID string) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusAwaitingPayment {
		return nil
	}
	if order.PaymentIntentID == "" {
		return s.markUnresolved(ctx, &order, "no payment intent recorded")
	}

	payment, err := s.gateway.GetPayment(ctx, order.PaymentIntentID)
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		if s.metrics != nil {
			s.metrics.RecordGatewayCall("get_payment", "not_found")
		}
		return s.markUnresolved(ctx, &order, "gateway has no record of the intent")
	case err != nil:
		if s.metrics != nil {
			s.metrics.RecordGatewayCall("get_payment", "error")
		}
		// Недоступность шлюза не откладывает разрешение: судьба intent
		// неизвестна, заказ уходит на ручной разбор с удержанием резерва.
		return s.markUnresolved(ctx, &order, "gateway query failed: "+err.Error())
	}
	if s.metrics != nil {
		s.metrics.RecordGatewayCall("get_payment", "ok")
	}

	if payment.Status.Terminal() {
		if err := s.applyOutcome(ctx, SourceSweep, orderID, payment); err != nil && !domain.IsAlreadyProcessed(err) {
			return err
		}
		return nil
	}
	return s.markUnresolved(ctx, &order, "outcome still "+string(payment.Status)+" after deadline")
}

// markUnresolved переводит просроченный заказ в error с удержанием резерва.
func (s *Service) markUnresolved(ctx context.Context, order *domain.Order, reason string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var deadline *time.Time
		if order.ExpiresAt != nil {
			d := *order.ExpiresAt
			deadline = &d
		}
		if err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderStatusAwaitingPayment, domain.OrderStatusError, deadline); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, order.ID, "PaymentUnresolved", reason)
	})
	if err != nil {
		// Конкурентный актор успел разрешить заказ; это не сбой sweeper-а.
		if domain.IsConcurrencyLost(err) {
			return nil
		}
		return err
	}
	order.Status = domain.OrderStatusError
	s.recordTransition(domain.OrderStatusError)
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Warn("expired order left unresolved, held for manual review")
	s.notify(ctx, "OrderStatusChanged", order)
	return nil
}

func (s *Service) getOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var getErr error
		order, getErr = tx.Orders().Get(ctx, orderID)
		return getErr
	})
	return order, err
}
