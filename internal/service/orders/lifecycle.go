package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CreateOrder конвертирует активную корзину покупателя в заказ.
// Цены и наименования снимаются с каталога в момент создания; дальнейшие
// изменения каталога на заказ не влияют. Строки корзины мягко деактивируются.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, shippingAddress string) (domain.Order, error) {
	if actor.ID == "" {
		return domain.Order{}, domain.ErrBuyerRequired
	}

	var order domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		cartLines, err := tx.Carts().ActiveLines(ctx, actor.ID)
		if err != nil {
			return err
		}
		if len(cartLines) == 0 {
			return domain.ErrCartEmpty
		}

		now := s.now()
		order = domain.Order{
			ID:              uuid.NewString(),
			BuyerID:         actor.ID,
			Status:          domain.OrderStatusPending,
			ShippingAddress: shippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		productIDs := make([]string, 0, len(cartLines))
		for _, cartLine := range cartLines {
			product, err := tx.Inventory().Get(ctx, cartLine.ProductID)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, domain.OrderLine{
				ID:         uuid.NewString(),
				OrderID:    order.ID,
				ProductID:  product.ID,
				Title:      product.Title,
				Qty:        cartLine.Qty,
				PriceMinor: product.EffectivePriceMinor(),
				CreatedAt:  now,
			})
			productIDs = append(productIDs, product.ID)
		}

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		if err := tx.Carts().Deactivate(ctx, actor.ID, productIDs); err != nil {
			return err
		}
		return s.appendTimeline(ctx, tx, order.ID, "OrderCreated", "")
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"buyer_id": order.BuyerID,
		"lines":    len(order.Lines),
	}).Info("order created from cart")
	s.notify(ctx, "OrderCreated", &order)
	return order, nil
}

// GetOrder возвращает заказ. Покупатель видит только собственные заказы.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	var order domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var getErr error
		order, getErr = tx.Orders().Get(ctx, orderID)
		return getErr
	})
	if err != nil {
		return domain.Order{}, err
	}
	if !actor.CanManageOrder(&order) {
		return domain.Order{}, domain.ErrForbidden
	}
	return order, nil
}

// ListOrders возвращает заказы покупателя, новые первыми.
// Покупатель может перечислять только собственные заказы.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, buyerID string, limit int) ([]domain.Order, error) {
	if !actor.Admin() && actor.ID != buyerID {
		return nil, domain.ErrForbidden
	}
	var list []domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var listErr error
		list, listErr = tx.Orders().ListByBuyer(ctx, buyerID, limit)
		return listErr
	})
	return list, err
}

// Timeline возвращает историю событий заказа.
func (s *Service) Timeline(ctx context.Context, actor domain.Actor, orderID string) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, getErr := tx.Orders().Get(ctx, orderID)
		if getErr != nil {
			return getErr
		}
		if !actor.CanManageOrder(&order) {
			return domain.ErrForbidden
		}
		var listErr error
		events, listErr = tx.Timeline().List(ctx, orderID)
		return listErr
	})
	return events, err
}

// DeleteLine удаляет позицию из заказа в статусе pending и возвращает её
// количество в корзину. Удаление последней позиции удаляет заказ целиком.
func (s *Service) DeleteLine(ctx context.Context, actor domain.Actor, orderID, lineID string) error {
	var orderDeleted bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanManageOrder(&order) {
			return domain.ErrForbidden
		}
		if order.Status != domain.OrderStatusPending {
			return domain.ErrInvalidTransition
		}

		var removed *domain.OrderLine
		for i := range order.Lines {
			if order.Lines[i].ID == lineID {
				removed = &order.Lines[i]
				break
			}
		}
		if removed == nil {
			return domain.ErrOrderLineNotFound
		}

		remaining, err := tx.Orders().DeleteLine(ctx, orderID, lineID)
		if err != nil {
			return err
		}
		if err := tx.Carts().Merge(ctx, order.BuyerID, removed.ProductID, removed.Qty); err != nil {
			return err
		}

		if remaining == 0 {
			orderDeleted = true
			return tx.Orders().Delete(ctx, orderID)
		}
		return s.appendTimeline(ctx, tx, orderID, "OrderLineRemoved", removed.ProductID)
	})
	if err != nil {
		return err
	}

	if orderDeleted {
		s.logger.WithField("order_id", orderID).Info("order deleted after removing last line")
	}
	return nil
}

// CancelOrder — отмена покупателем. Заказ жёстко удаляется, резерв (если был)
// снимается, количества возвращаются в корзину. Доступна только в статусах
// pending и awaiting_payment; статус error разбирает оператор.
func (s *Service) CancelOrder(ctx context.Context, actor domain.Actor, orderID string) error {
	var cancelled domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanManageOrder(&order) {
			return domain.ErrForbidden
		}
		if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusAwaitingPayment {
			return domain.ErrInvalidTransition
		}

		restore := make([]domain.ReleasedLine, 0, len(order.Lines))
		if order.Status.HoldsReservation() {
			released, err := s.releaseOrderLines(ctx, tx, &order)
			if err != nil {
				return err
			}
			restore = released
		} else {
			for _, line := range order.Lines {
				restore = append(restore, domain.ReleasedLine{ProductID: line.ProductID, Qty: line.Qty})
			}
		}

		if err := s.carts.Restore(ctx, tx, order.BuyerID, restore); err != nil {
			return err
		}
		if err := tx.Orders().Delete(ctx, orderID); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"buyer_id": cancelled.BuyerID,
	}).Info("order cancelled by buyer")
	s.notify(ctx, "OrderCancelled", &cancelled)
	return nil
}

// adminTargets — статусы, в которые заказ может перевести оператор.
// Исходы шлюза (rejected, cancelled_by_gateway, expired) сюда не входят:
// их выставляет только обработка платёжных событий.
var adminTargets = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPaid:             {},
	domain.OrderStatusCancelledByAdmin: {},
	domain.OrderStatusShipped:          {},
	domain.OrderStatusDelivered:        {},
}

// UpdateOrderStatus — ручной перевод статуса оператором.
// error → paid требует зафиксированного approved-платежа и коммитит резерв.
// Отмена оператором снимает резерв, но корзину не восстанавливает.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor domain.Actor, orderID string, to domain.OrderStatus, reason string) (domain.Order, error) {
	if !actor.Admin() {
		return domain.Order{}, domain.ErrForbidden
	}
	if _, ok := adminTargets[to]; !ok {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	var order domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		from := order.Status
		if !from.CanTransition(to) {
			return domain.ErrInvalidTransition
		}

		switch {
		case to == domain.OrderStatusPaid:
			// Ручной перевод в paid разрешён только из error и только при
			// подтверждённом платеже.
			if from != domain.OrderStatusError {
				return domain.ErrInvalidTransition
			}
			if err := requireApprovedPayment(ctx, tx, orderID); err != nil {
				return err
			}
			if err := s.commitOrderLines(ctx, tx, &order); err != nil {
				return err
			}
		case to == domain.OrderStatusCancelledByAdmin && from.HoldsReservation():
			if _, err := s.releaseOrderLines(ctx, tx, &order); err != nil {
				return err
			}
		}

		if err := tx.Orders().UpdateStatus(ctx, orderID, from, to, nil); err != nil {
			return err
		}
		order.Status = to
		order.ExpiresAt = nil
		return s.appendTimeline(ctx, tx, orderID, "OrderStatusChanged", reason)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.recordTransition(to)
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   to,
		"actor_id": actor.ID,
	}).Info("order status updated by admin")
	s.notify(ctx, "OrderStatusChanged", &order)
	return order, nil
}

func requireApprovedPayment(ctx context.Context, tx domain.Tx, orderID string) error {
	payments, err := tx.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, payment := range payments {
		if payment.Status == domain.PaymentStatusApproved {
			return nil
		}
	}
	return domain.ErrPaymentNotFound
}
