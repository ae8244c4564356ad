package orders

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// InitiatePayment резервирует сток под заказ и создаёт платёжное намерение.
//
// Резервирование и перевод pending → awaiting_payment выполняются одной
// транзакцией: при нехватке остатка по любой позиции откатывается всё,
// заказ остаётся в pending. Вызов шлюза выполняется вне транзакции.
// При сбое шлюза заказ переводится в error, резерв удерживается до
// выяснения исхода: деньги могли быть списаны.
func (s *Service) InitiatePayment(ctx context.Context, actor domain.Actor, orderID string) (string, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordInitiateDuration(s.now().Sub(start))
		}
	}()

	var order domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanManageOrder(&order) {
			return domain.ErrForbidden
		}
		if order.Status != domain.OrderStatusPending {
			return domain.ErrInvalidTransition
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}

		for _, line := range order.Lines {
			if err := tx.Inventory().Reserve(ctx, line.ProductID, line.Qty); err != nil {
				return err
			}
		}

		deadline := s.now().Add(s.cfg.ReservationTTL)
		if err := tx.Orders().UpdateStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusAwaitingPayment, &deadline); err != nil {
			return err
		}
		order.Status = domain.OrderStatusAwaitingPayment
		order.ExpiresAt = &deadline
		return s.appendTimeline(ctx, tx, orderID, "PaymentInitiated", "")
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordReservationFailure()
		}
		return "", err
	}
	s.recordTransition(domain.OrderStatusAwaitingPayment)

	req := domain.IntentRequest{
		OrderRef:   order.ID,
		SuccessURL: s.cfg.SuccessURL,
		FailureURL: s.cfg.FailureURL,
	}
	for _, line := range order.Lines {
		req.Lines = append(req.Lines, domain.IntentLine{
			Title:     line.Title,
			UnitMinor: line.PriceMinor,
			Qty:       line.Qty,
		})
	}

	intent, gatewayErr := s.gateway.CreateIntent(ctx, req)
	if gatewayErr != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewayCall("create_intent", "error")
		}
		s.logger.WithError(gatewayErr).WithField("order_id", orderID).Warn("create intent failed")
		s.failInitiate(ctx, &order, gatewayErr)
		return "", gatewayErr
	}
	if s.metrics != nil {
		s.metrics.RecordGatewayCall("create_intent", "ok")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().SetPaymentIntent(ctx, orderID, intent.ID)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":  orderID,
			"intent_id": intent.ID,
		}).Error("persist payment intent failed")
		return "", err
	}

	order.PaymentIntentID = intent.ID
	s.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"intent_id": intent.ID,
	}).Info("payment initiated")
	s.notify(ctx, "PaymentInitiated", &order)
	return intent.RedirectURL, nil
}

// failInitiate переводит заказ в error после сбоя шлюза.
// Резерв и дедлайн сохраняются: исход оплаты неизвестен.
func (s *Service) failInitiate(ctx context.Context, order *domain.Order, cause error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderStatusAwaitingPayment, domain.OrderStatusError, order.ExpiresAt); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, order.ID, "GatewayFailed", cause.Error())
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("mark order as error failed")
		return
	}
	order.Status = domain.OrderStatusError
	s.recordTransition(domain.OrderStatusError)
	s.notify(ctx, "OrderStatusChanged", order)
}

// VerifyPayment — синхронная сверка исхода со шлюзом по запросу покупателя.
// Терминальный исход применяется так же, как webhook-событие; нетерминальный
// оставляет заказ без изменений.
func (s *Service) VerifyPayment(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusAwaitingPayment && order.Status != domain.OrderStatusError {
		return order, nil
	}
	if order.PaymentIntentID == "" {
		return domain.Order{}, domain.ErrNoPaymentIntent
	}

	payment, err := s.gateway.GetPayment(ctx, order.PaymentIntentID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewayCall("get_payment", "error")
		}
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordGatewayCall("get_payment", "ok")
	}

	if payment.Status.Terminal() {
		if err := s.applyOutcome(ctx, SourceVerify, orderID, payment); err != nil && !domain.IsAlreadyProcessed(err) {
			return domain.Order{}, err
		}
	}

	return s.GetOrder(ctx, actor, orderID)
}
