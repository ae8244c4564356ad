package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker ограничивает обращения к шлюзу после серии отказов.
// Открытый контур отвечает ErrGatewayUnavailable без сетевого вызова.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
}

// NewCircuitBreaker создаёт circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// Execute выполняет операцию через circuit breaker.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.logger.WithField("operation", operation).Info("Circuit breaker half-open")
		} else {
			cb.mu.Unlock()
			return domain.ErrGatewayUnavailable
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		// Деловые отказы (404, валидация) не считаются сбоями транспорта.
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			return err
		}
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("Circuit breaker opened")
		}

		return err
	}

	// Успешное выполнение - сбрасываем счётчик
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.logger.WithField("operation", operation).Info("Circuit breaker closed")
	}
	cb.failures = 0

	return nil
}

// State возвращает текущее состояние контура.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerGateway оборачивает PaymentGateway в circuit breaker.
type BreakerGateway struct {
	gateway domain.PaymentGateway
	breaker *CircuitBreaker
}

// NewBreakerGateway создаёт шлюз, защищённый circuit breaker.
func NewBreakerGateway(gateway domain.PaymentGateway, breaker *CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{gateway: gateway, breaker: breaker}
}

// CreateIntent создаёт intent через circuit breaker.
func (b *BreakerGateway) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := b.breaker.Execute("CreateIntent", func() error {
		var callErr error
		intent, callErr = b.gateway.CreateIntent(ctx, req)
		return callErr
	})
	return intent, err
}

// GetPayment запрашивает платёж через circuit breaker.
func (b *BreakerGateway) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	var payment domain.GatewayPayment
	err := b.breaker.Execute("GetPayment", func() error {
		var callErr error
		payment, callErr = b.gateway.GetPayment(ctx, paymentID)
		return callErr
	})
	return payment, err
}

var _ domain.PaymentGateway = (*BreakerGateway)(nil)
