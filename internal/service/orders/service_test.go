package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	"github.com/vladislavdragonenkov/shopcore/internal/service/gateway"
	"github.com/vladislavdragonenkov/shopcore/internal/storage/memory"
)

type notifierStub struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (n *notifierStub) Notify(ctx context.Context, event domain.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *notifierStub) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e.Type == eventType {
			total++
		}
	}
	return total
}

type testEnv struct {
	svc      *Service
	store    *memory.Store
	gateway  *gateway.MockGateway
	notifier *notifierStub
	clock    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	mock := gateway.NewMockGateway()
	notifier := &notifierStub{}

	svc := NewServiceWithoutMetrics(store, mock, notifier, Config{
		ReservationTTL: 30 * time.Minute,
		SuccessURL:     "https://shop.example/success",
		FailureURL:     "https://shop.example/failure",
	}, nil)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }

	return &testEnv{svc: svc, store: store, gateway: mock, notifier: notifier, clock: clock}
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *testEnv) seedProduct(t *testing.T, id string, priceMinor, promoMinor int64, stock int32) {
	t.Helper()
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Inventory().CreateProduct(ctx, domain.Product{
			ID:              id,
			Title:           "Product " + id,
			PriceMinor:      priceMinor,
			PromoPriceMinor: promoMinor,
			Stock:           stock,
		})
	})
	require.NoError(t, err)
}

func (e *testEnv) seedCart(t *testing.T, buyerID string, lines map[string]int32) {
	t.Helper()
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for productID, qty := range lines {
			if err := tx.Carts().Merge(ctx, buyerID, productID, qty); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (e *testEnv) product(t *testing.T, id string) domain.Product {
	t.Helper()
	var product domain.Product
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var getErr error
		product, getErr = tx.Inventory().Get(ctx, id)
		return getErr
	})
	require.NoError(t, err)
	return product
}

func (e *testEnv) order(t *testing.T, id string) domain.Order {
	t.Helper()
	order, err := e.svc.getOrder(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (e *testEnv) activeCart(t *testing.T, buyerID string) map[string]int32 {
	t.Helper()
	result := make(map[string]int32)
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		lines, listErr := tx.Carts().ActiveLines(ctx, buyerID)
		if listErr != nil {
			return listErr
		}
		for _, line := range lines {
			result[line.ProductID] = line.Qty
		}
		return nil
	})
	require.NoError(t, err)
	return result
}

var (
	buyer = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
	admin = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

const shippingAddress = "Tverskaya st. 7, Moscow"

// createOrder создаёт заказ из корзины с типовым набором позиций.
func (e *testEnv) createOrder(t *testing.T) domain.Order {
	t.Helper()
	e.seedProduct(t, "prod-1", 100000, 0, 5)
	e.seedProduct(t, "prod-2", 50000, 40000, 3)
	e.seedCart(t, buyer.ID, map[string]int32{"prod-1": 2, "prod-2": 1})

	order, err := e.svc.CreateOrder(context.Background(), buyer, shippingAddress)
	require.NoError(t, err)
	return order
}

func TestCreateOrderFromCart(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, buyer.ID, order.BuyerID)
	require.Len(t, order.Lines, 2)

	// Снимок цен: действующая акционная цена попадает в позицию заказа.
	prices := make(map[string]int64)
	for _, line := range order.Lines {
		prices[line.ProductID] = line.PriceMinor
	}
	require.Equal(t, int64(100000), prices["prod-1"])
	require.Equal(t, int64(40000), prices["prod-2"])
	require.Equal(t, int64(240000), order.AmountMinor())

	// Строки корзины деактивированы.
	require.Empty(t, env.activeCart(t, buyer.ID))

	// Корзина не резервирует сток.
	require.Equal(t, int32(0), env.product(t, "prod-1").Reserved)

	events, err := env.svc.Timeline(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "OrderCreated", events[0].Type)

	require.Equal(t, 1, env.notifier.count("OrderCreated"))
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateOrder(context.Background(), domain.Actor{}, shippingAddress)
	require.ErrorIs(t, err, domain.ErrBuyerRequired)

	_, err = env.svc.CreateOrder(context.Background(), buyer, shippingAddress)
	require.ErrorIs(t, err, domain.ErrCartEmpty)

	env.seedProduct(t, "prod-1", 100000, 0, 5)
	env.seedCart(t, buyer.ID, map[string]int32{"prod-1": 1})

	_, err = env.svc.CreateOrder(context.Background(), buyer, "short")
	require.ErrorIs(t, err, domain.ErrShippingAddressInvalid)

	// Неудачная валидация не трогает корзину.
	require.Len(t, env.activeCart(t, buyer.ID), 1)
}

func TestInitiatePaymentReservesAndCreatesIntent(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	redirect, err := env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, env.gateway.RedirectURL, redirect)

	got := env.order(t, order.ID)
	require.Equal(t, domain.OrderStatusAwaitingPayment, got.Status)
	require.Equal(t, env.gateway.IntentID, got.PaymentIntentID)
	require.NotNil(t, got.ExpiresAt)
	require.Equal(t, env.clock.Add(30*time.Minute), *got.ExpiresAt)

	require.Equal(t, int32(2), env.product(t, "prod-1").Reserved)
	require.Equal(t, int32(1), env.product(t, "prod-2").Reserved)

	// Шлюзу ушли снимки позиций заказа.
	require.Equal(t, order.ID, env.gateway.LastIntentRequest.OrderRef)
	require.Len(t, env.gateway.LastIntentRequest.Lines, 2)
}

func TestInitiatePaymentInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1", 100000, 0, 1)
	env.seedCart(t, buyer.ID, map[string]int32{"prod-1": 2})

	order, err := env.svc.CreateOrder(context.Background(), buyer, shippingAddress)
	require.NoError(t, err)

	_, err = env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Откат целиком: заказ остался в pending, резерв не появился.
	require.Equal(t, domain.OrderStatusPending, env.order(t, order.ID).Status)
	require.Equal(t, int32(0), env.product(t, "prod-1").Reserved)
	require.Zero(t, env.gateway.CreateIntentCalls)
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.gateway.IntentErr = domain.ErrGatewayUnavailable

	_, err := env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	// Исход неизвестен: заказ в error, резерв удержан.
	got := env.order(t, order.ID)
	require.Equal(t, domain.OrderStatusError, got.Status)
	require.Equal(t, int32(2), env.product(t, "prod-1").Reserved)
}

func TestInitiatePaymentOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	_, err := env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)

	_, err = env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestInitiatePaymentConcurrentExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.InitiatePayment(context.Background(), buyer, order.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)

	// Резерв создан ровно один раз.
	require.Equal(t, int32(2), env.product(t, "prod-1").Reserved)
	require.Equal(t, int32(1), env.product(t, "prod-2").Reserved)
}

func initiated(t *testing.T, env *testEnv) domain.Order {
	t.Helper()
	order := env.createOrder(t)
	_, err := env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	return env.order(t, order.ID)
}

func TestApplyOutcomeApproved(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-1",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
		AmountMinor: order.AmountMinor(),
	})
	require.NoError(t, err)

	got := env.order(t, order.ID)
	require.Equal(t, domain.OrderStatusPaid, got.Status)
	require.Nil(t, got.ExpiresAt)

	// Commit: резерв превратился в списание.
	prod := env.product(t, "prod-1")
	require.Equal(t, int32(3), prod.Stock)
	require.Equal(t, int32(0), prod.Reserved)

	// Повторная доставка того же события — идемпотентный no-op.
	err = env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-1",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	require.Equal(t, int32(3), env.product(t, "prod-1").Stock)
}

func TestApplyOutcomeRejectedReleasesAndRestoresCart(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-2",
		Status:      domain.PaymentStatusRejected,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)

	got := env.order(t, order.ID)
	require.Equal(t, domain.OrderStatusRejected, got.Status)

	// Release: сток вернулся, корзина восстановлена.
	prod := env.product(t, "prod-1")
	require.Equal(t, int32(5), prod.Stock)
	require.Equal(t, int32(0), prod.Reserved)

	restored := env.activeCart(t, buyer.ID)
	require.Equal(t, int32(2), restored["prod-1"])
	require.Equal(t, int32(1), restored["prod-2"])
}

func TestApplyOutcomeCancelledViaWebhook(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-3",
		Status:      domain.PaymentStatusCancelled,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCancelledByGateway, env.order(t, order.ID).Status)
}

func TestApplyOutcomeNonTerminalKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-4",
		Status:      domain.PaymentStatusInProcess,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)

	// Нетерминальный статус не занимает ключ идемпотентности.
	require.Equal(t, domain.OrderStatusAwaitingPayment, env.order(t, order.ID).Status)

	err = env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-4",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, env.order(t, order.ID).Status)
}

func TestApplyOutcomeUnknownRef(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-5",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: "missing-order",
	})
	require.ErrorIs(t, err, domain.ErrUnknownOrderRef)

	err = env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:     "ext-6",
		Status: domain.PaymentStatusApproved,
	})
	require.ErrorIs(t, err, domain.ErrUnknownOrderRef)
}

func TestApplyOutcomeLateAfterSettled(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceSweep, domain.GatewayPayment{
		ID:          "ext-7",
		Status:      domain.PaymentStatusCancelled,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusExpired, env.order(t, order.ID).Status)

	// Поздний approved после expired: платёж фиксируется, статус не меняется.
	err = env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-8",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusExpired, env.order(t, order.ID).Status)

	// Сток не был закоммичен задним числом.
	require.Equal(t, int32(5), env.product(t, "prod-1").Stock)
}

func TestVerifyPaymentAppliesTerminalOutcome(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	env.gateway.Payment = domain.GatewayPayment{
		ID:          "ext-9",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	}

	got, err := env.svc.VerifyPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, got.Status)
	require.Equal(t, order.PaymentIntentID, env.gateway.LastPaymentID)
}

func TestVerifyPaymentNonTerminal(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	env.gateway.Payment = domain.GatewayPayment{
		ID:          "ext-10",
		Status:      domain.PaymentStatusInProcess,
		ExternalRef: order.ID,
	}

	got, err := env.svc.VerifyPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusAwaitingPayment, got.Status)
}

func TestVerifyPaymentWithoutIntent(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	// pending возвращается как есть без обращения к шлюзу.
	got, err := env.svc.VerifyPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, got.Status)
	require.Zero(t, env.gateway.GetPaymentCalls)
}

func TestReconcileExpired(t *testing.T) {
	type result struct {
		status     domain.OrderStatus
		reserved   int32
		cartActive bool
	}

	tests := []struct {
		name       string
		payment    domain.GatewayPayment
		paymentErr error
		want       result
	}{
		{
			name:    "cancelled after deadline becomes expired",
			payment: domain.GatewayPayment{ID: "ext-s1", Status: domain.PaymentStatusCancelled},
			want:    result{status: domain.OrderStatusExpired, reserved: 0, cartActive: true},
		},
		{
			name:    "approved is honoured even after deadline",
			payment: domain.GatewayPayment{ID: "ext-s2", Status: domain.PaymentStatusApproved},
			want:    result{status: domain.OrderStatusPaid, reserved: 0, cartActive: false},
		},
		{
			name:    "still pending goes to error with reservation held",
			payment: domain.GatewayPayment{ID: "ext-s3", Status: domain.PaymentStatusPending},
			want:    result{status: domain.OrderStatusError, reserved: 2, cartActive: false},
		},
		{
			name:       "gateway has no record goes to error",
			paymentErr: domain.ErrPaymentNotFound,
			want:       result{status: domain.OrderStatusError, reserved: 2, cartActive: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			order := initiated(t, env)

			env.gateway.Payment = tt.payment
			env.gateway.PaymentErr = tt.paymentErr
			env.advance(time.Hour)

			ids, err := env.svc.ListExpired(context.Background(), 100)
			require.NoError(t, err)
			require.Equal(t, []string{order.ID}, ids)

			require.NoError(t, env.svc.ReconcileExpired(context.Background(), order.ID))

			got := env.order(t, order.ID)
			require.Equal(t, tt.want.status, got.Status)
			require.Equal(t, tt.want.reserved, env.product(t, "prod-1").Reserved)
			require.Equal(t, tt.want.cartActive, len(env.activeCart(t, buyer.ID)) > 0)
		})
	}
}

func TestReconcileExpiredGatewayUnavailable(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	env.gateway.PaymentErr = domain.ErrGatewayUnavailable
	env.advance(time.Hour)

	require.NoError(t, env.svc.ReconcileExpired(context.Background(), order.ID))

	// Судьба intent неизвестна: заказ уходит в error, резерв удержан.
	require.Equal(t, domain.OrderStatusError, env.order(t, order.ID).Status)
	require.Equal(t, int32(2), env.product(t, "prod-1").Reserved)
}

func TestReconcileExpiredSettledMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-race",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)

	// Заказ уже paid: sweeper молча пропускает его.
	require.NoError(t, env.svc.ReconcileExpired(context.Background(), order.ID))
	require.Equal(t, domain.OrderStatusPaid, env.order(t, order.ID).Status)
}

func TestCancelOrderByBuyer(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	require.NoError(t, env.svc.CancelOrder(context.Background(), buyer, order.ID))

	_, err := env.svc.getOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	// Резерв снят, корзина восстановлена.
	require.Equal(t, int32(0), env.product(t, "prod-1").Reserved)
	restored := env.activeCart(t, buyer.ID)
	require.Equal(t, int32(2), restored["prod-1"])
}

func TestCancelOrderZeroEffectReleaseLogged(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	logger, hook := logtest.NewNullLogger()
	env.svc.logger = logger.WithField("component", "orders")

	// Резерв prod-1 уже снят другим актором.
	err := env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, releaseErr := tx.Inventory().Release(ctx, "prod-1", 2)
		return releaseErr
	})
	require.NoError(t, err)

	// Нулевой эффект не фатален: отмена проходит до конца.
	require.NoError(t, env.svc.CancelOrder(context.Background(), buyer, order.ID))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "release had no effect, reservation already gone" {
			warned = true
			require.Equal(t, log.WarnLevel, entry.Level)
			require.Equal(t, "prod-1", entry.Data["product_id"])
		}
	}
	require.True(t, warned)

	// В корзину вернулось только реально освобождённое.
	restored := env.activeCart(t, buyer.ID)
	_, ok := restored["prod-1"]
	require.False(t, ok)
	require.Equal(t, int32(1), restored["prod-2"])
}

func TestCancelOrderForbiddenAndInvalid(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	stranger := domain.Actor{ID: "buyer-2", Role: domain.RoleBuyer}
	require.ErrorIs(t, env.svc.CancelOrder(context.Background(), stranger, order.ID), domain.ErrForbidden)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-11",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)

	// Оплаченный заказ покупатель отменить не может.
	require.ErrorIs(t, env.svc.CancelOrder(context.Background(), buyer, order.ID), domain.ErrInvalidTransition)
}

func TestDeleteLine(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	var first, second domain.OrderLine
	for _, line := range order.Lines {
		if line.ProductID == "prod-1" {
			first = line
		} else {
			second = line
		}
	}

	require.NoError(t, env.svc.DeleteLine(context.Background(), buyer, order.ID, first.ID))

	got := env.order(t, order.ID)
	require.Len(t, got.Lines, 1)
	require.Equal(t, int32(2), env.activeCart(t, buyer.ID)["prod-1"])

	// Удаление последней позиции удаляет заказ целиком.
	require.NoError(t, env.svc.DeleteLine(context.Background(), buyer, order.ID, second.ID))
	_, err := env.svc.getOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestDeleteLineOnlyPending(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.DeleteLine(context.Background(), buyer, order.ID, order.Lines[0].ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateOrderStatusShipping(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	err := env.svc.ApplyOutcome(context.Background(), SourceWebhook, domain.GatewayPayment{
		ID:          "ext-12",
		Status:      domain.PaymentStatusApproved,
		ExternalRef: order.ID,
	})
	require.NoError(t, err)

	got, err := env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusShipped, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusShipped, got.Status)

	got, err = env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusDelivered, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, got.Status)
}

func TestUpdateOrderStatusErrorToPaid(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	env.gateway.IntentErr = domain.ErrGatewayUnavailable
	_, err := env.svc.InitiatePayment(context.Background(), buyer, order.ID)
	require.Error(t, err)
	require.Equal(t, domain.OrderStatusError, env.order(t, order.ID).Status)

	// Без подтверждённого платежа ручной перевод в paid запрещён.
	_, err = env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid, "manual review")
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)

	// Оператор разобрался: approved-платёж зафиксирован в хранилище.
	err = env.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Payments().Insert(ctx, domain.Payment{
			ID:          "pay-manual",
			OrderID:     order.ID,
			ExternalID:  "ext-13",
			Status:      domain.PaymentStatusApproved,
			AmountMinor: order.AmountMinor(),
		})
	})
	require.NoError(t, err)

	got, err := env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid, "confirmed with gateway support")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, got.Status)

	prod := env.product(t, "prod-1")
	require.Equal(t, int32(3), prod.Stock)
	require.Equal(t, int32(0), prod.Reserved)
}

func TestUpdateOrderStatusAdminCancelKeepsCartInactive(t *testing.T) {
	env := newTestEnv(t)
	order := initiated(t, env)

	got, err := env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusCancelledByAdmin, "fraud suspected")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCancelledByAdmin, got.Status)

	// Резерв снят, но корзина не восстановлена.
	require.Equal(t, int32(0), env.product(t, "prod-1").Reserved)
	require.Empty(t, env.activeCart(t, buyer.ID))
}

func TestUpdateOrderStatusGuards(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	_, err := env.svc.UpdateOrderStatus(context.Background(), buyer, order.ID, domain.OrderStatusCancelledByAdmin, "")
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Статусы исходов шлюза оператору недоступны.
	_, err = env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusRejected, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// pending → paid запрещён таблицей переходов.
	_, err = env.svc.UpdateOrderStatus(context.Background(), admin, order.ID, domain.OrderStatusPaid, "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestGetOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	stranger := domain.Actor{ID: "buyer-2", Role: domain.RoleBuyer}
	_, err := env.svc.GetOrder(context.Background(), stranger, order.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Оператор видит любой заказ.
	_, err = env.svc.GetOrder(context.Background(), admin, order.ID)
	require.NoError(t, err)
}
