package webhook

import (
	"context"
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/metrics"
	"github.com/vladislavdragonenkov/shopcore/internal/service/orders"
)

// OutcomeApplier применяет платёжный исход к заказу.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, source orders.Source, payment domain.GatewayPayment) error
}

// Event — тело webhook-уведомления шлюза. Уведомление несёт только
// идентификатор платежа; состояние запрашивается у шлюза отдельным вызовом,
// чтобы не доверять телу события.
type Event struct {
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Ingestor принимает платёжные события шлюза и применяет их к заказам.
type Ingestor struct {
	store    domain.Store
	gateway  domain.PaymentGateway
	outcomes OutcomeApplier
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewIngestor создаёт обработчик webhook-событий.
func NewIngestor(store domain.Store, gw domain.PaymentGateway, outcomes OutcomeApplier, logger *log.Entry) *Ingestor {
	ingestor := newIngestor(store, gw, outcomes, logger)
	ingestor.metrics = metrics.NewOrderMetrics()
	return ingestor
}

// NewIngestorWithoutMetrics создаёт обработчик без метрик (для тестов).
func NewIngestorWithoutMetrics(store domain.Store, gw domain.PaymentGateway, outcomes OutcomeApplier, logger *log.Entry) *Ingestor {
	return newIngestor(store, gw, outcomes, logger)
}

func newIngestor(store domain.Store, gw domain.PaymentGateway, outcomes OutcomeApplier, logger *log.Entry) *Ingestor {
	if logger == nil {
		logger = log.New().WithField("component", "webhook")
	}
	return &Ingestor{
		store:    store,
		gateway:  gw,
		outcomes: outcomes,
		logger:   logger,
	}
}

// ProcessBody разбирает тело уведомления и обрабатывает событие.
func (i *Ingestor) ProcessBody(ctx context.Context, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		i.record("malformed")
		return err
	}
	if event.Data.ID == "" {
		i.record("malformed")
		return domain.ErrExternalIDRequired
	}
	return i.Process(ctx, event.Data.ID)
}

// Process применяет событие по идентификатору платежа.
//
// Дедупликация двухступенчатая: быстрая проверка по external_id до обращения
// к шлюзу и уникальный индекс при записи. Повтор уже обработанного события
// подтверждается успехом без побочных эффектов.
func (i *Ingestor) Process(ctx context.Context, paymentID string) error {
	if i.seen(ctx, paymentID) {
		i.record("duplicate")
		i.logger.WithField("external_id", paymentID).Debug("webhook event already processed")
		return nil
	}

	// Состояние платежа запрашивается у шлюза: телу уведомления не доверяем.
	payment, err := i.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		i.record("gateway_error")
		i.logger.WithError(err).WithField("external_id", paymentID).Warn("fetch payment for webhook failed")
		return err
	}

	err = i.outcomes.ApplyOutcome(ctx, orders.SourceWebhook, payment)
	switch {
	case err == nil:
		i.record("applied")
		return nil
	case domain.IsAlreadyProcessed(err):
		i.record("duplicate")
		return nil
	case errors.Is(err, domain.ErrUnknownOrderRef):
		// Событие не указывает на существующий заказ: отклоняем окончательно,
		// ограниченный ретрай на стороне шлюза сам остановится.
		i.record("unknown_ref")
		i.logger.WithFields(log.Fields{
			"external_id":  paymentID,
			"external_ref": payment.ExternalRef,
		}).Warn("webhook event references unknown order")
		return err
	default:
		i.record("error")
		return err
	}
}

func (i *Ingestor) seen(ctx context.Context, externalID string) bool {
	var found bool
	err := i.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, getErr := tx.Payments().GetByExternalID(ctx, externalID)
		if getErr == nil {
			found = true
			return nil
		}
		if errors.Is(getErr, domain.ErrPaymentNotFound) {
			return nil
		}
		return getErr
	})
	if err != nil {
		i.logger.WithError(err).WithField("external_id", externalID).Warn("dedupe lookup failed")
		return false
	}
	return found
}

func (i *Ingestor) record(result string) {
	if i.metrics != nil {
		i.metrics.RecordWebhookEvent(result)
	}
}
