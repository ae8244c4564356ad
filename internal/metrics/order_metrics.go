package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов.
type OrderMetrics struct {
	// Счётчики переходов по целевому статусу.
	transitions *prometheus.CounterVec

	// Исходы резервирования стока.
	reservationFailures prometheus.Counter

	// Исходы обработки webhook-событий.
	webhookEvents *prometheus.CounterVec

	// Вызовы платёжного шлюза по операции и результату.
	gatewayCalls *prometheus.CounterVec

	// Длительность initiate-payment end-to-end.
	initiateDuration prometheus.Histogram

	// Счётчик неудачных best-effort уведомлений.
	notifyFailures prometheus.Counter
}

// NewOrderMetrics создаёт метрики с регистрацией в default registerer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики с явным registerer (для тестов).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"to"}),
		reservationFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_reservation_failures_total",
			Help: "Total number of failed stock reservation attempts",
		}),
		webhookEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_webhook_events_total",
			Help: "Total number of processed webhook events grouped by result",
		}, []string{"result"}),
		gatewayCalls: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_gateway_calls_total",
			Help: "Total number of payment gateway calls grouped by operation and result",
		}, []string{"op", "result"}),
		initiateDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_initiate_payment_duration_seconds",
			Help:    "Duration of the initiate-payment use case in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		notifyFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_notify_failures_total",
			Help: "Total number of failed best-effort notifications",
		}),
	}
}

// RecordTransition увеличивает счётчик переходов в целевой статус.
func (m *OrderMetrics) RecordTransition(to string) {
	m.transitions.WithLabelValues(to).Inc()
}

// RecordReservationFailure увеличивает счётчик отказов резервирования.
func (m *OrderMetrics) RecordReservationFailure() {
	m.reservationFailures.Inc()
}

// RecordWebhookEvent увеличивает счётчик webhook-событий с результатом.
func (m *OrderMetrics) RecordWebhookEvent(result string) {
	m.webhookEvents.WithLabelValues(result).Inc()
}

// RecordGatewayCall увеличивает счётчик вызовов шлюза.
func (m *OrderMetrics) RecordGatewayCall(op, result string) {
	m.gatewayCalls.WithLabelValues(op, result).Inc()
}

// RecordInitiateDuration записывает длительность initiate-payment.
func (m *OrderMetrics) RecordInitiateDuration(duration time.Duration) {
	m.initiateDuration.Observe(duration.Seconds())
}

// RecordNotifyFailure увеличивает счётчик неудачных уведомлений.
func (m *OrderMetrics) RecordNotifyFailure() {
	m.notifyFailures.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
