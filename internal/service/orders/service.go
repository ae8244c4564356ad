package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/cart"
)

const (
	defaultReservationTTL = 30 * time.Minute
)

// Config — настройки сервиса заказов.
type Config struct {
	// ReservationTTL — срок жизни резерва после инициации оплаты.
	ReservationTTL time.Duration
	// SuccessURL и FailureURL передаются шлюзу при создании intent.
	SuccessURL string
	FailureURL string
}

// Service реализует жизненный цикл заказа: корзина → заказ → оплата → доставка.
// Все изменения состояния проходят через транзакции Store; таблица переходов
// статусов — единственный арбитр допустимых изменений.
type Service struct {
	store    domain.Store
	gateway  domain.PaymentGateway
	notifier domain.Notifier
	carts    *cart.Reactivator
	cfg      Config
	logger   *log.Entry
	metrics  *metrics.OrderMetrics

	now func() time.Time
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	store domain.Store,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	cfg Config,
	logger *log.Entry,
) *Service {
	svc := newService(store, gateway, notifier, cfg, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	store domain.Store,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	cfg Config,
	logger *log.Entry,
) *Service {
	return newService(store, gateway, notifier, cfg, logger)
}

func newService(
	store domain.Store,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	cfg Config,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = defaultReservationTTL
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		carts:    cart.NewReactivator(logger),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// notify доставляет событие best-effort: вызывается после коммита транзакции,
// сбой доставки логируется и не влияет на результат операции.
func (s *Service) notify(ctx context.Context, eventType string, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	event := domain.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		Status:     order.Status,
		OccurredAt: s.now(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("notify failed")
		if s.metrics != nil {
			s.metrics.RecordNotifyFailure()
		}
	}
}

// appendTimeline пишет событие в историю заказа внутри текущей транзакции.
func (s *Service) appendTimeline(ctx context.Context, tx domain.Tx, orderID, eventType, reason string) error {
	return tx.Timeline().Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	})
}

// recordTransition учитывает переход в метриках.
func (s *Service) recordTransition(to domain.OrderStatus) {
	if s.metrics != nil {
		s.metrics.RecordTransition(string(to))
	}
}

// releaseOrderLines снимает резерв со всех позиций заказа.
// Нулевой эффект по отдельной позиции не фатален: конкурентный актор уже
// снял этот резерв.
func (s *Service) releaseOrderLines(ctx context.Context, tx domain.Tx, order *domain.Order) ([]domain.ReleasedLine, error) {
	released := make([]domain.ReleasedLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		ok, err := tx.Inventory().Release(ctx, line.ProductID, line.Qty)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": line.ProductID,
				"qty":        line.Qty,
			}).Warn("release had no effect, reservation already gone")
			continue
		}
		released = append(released, domain.ReleasedLine{ProductID: line.ProductID, Qty: line.Qty})
	}
	return released, nil
}

// commitOrderLines превращает резерв всех позиций в постоянное списание.
func (s *Service) commitOrderLines(ctx context.Context, tx domain.Tx, order *domain.Order) error {
	for _, line := range order.Lines {
		if err := tx.Inventory().Commit(ctx, line.ProductID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}
