package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Транзакции сериализуются общим мьютексом; откат реализован снимком состояния,
// поэтому семантика "всё или ничего" совпадает с PostgreSQL-реализацией.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	products  map[string]domain.Product
	orders    map[string]domain.Order
	payments  map[string]domain.Payment
	byExtID   map[string]string
	cartLines map[string]domain.CartLine
	timeline  map[string][]domain.TimelineEvent
}

func newState() *state {
	return &state{
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		payments:  make(map[string]domain.Payment),
		byExtID:   make(map[string]string),
		cartLines: make(map[string]domain.CartLine),
		timeline:  make(map[string][]domain.TimelineEvent),
	}
}

// clone делает глубокую копию состояния для отката транзакции.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		lines := make([]domain.OrderLine, len(v.Lines))
		copy(lines, v.Lines)
		v.Lines = lines
		if v.ExpiresAt != nil {
			expires := *v.ExpiresAt
			v.ExpiresAt = &expires
		}
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.byExtID {
		c.byExtID[k] = v
	}
	for k, v := range s.cartLines {
		c.cartLines[k] = v
	}
	for k, v := range s.timeline {
		events := make([]domain.TimelineEvent, len(v))
		copy(events, v)
		c.timeline[k] = events
	}
	return c
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx выполняет fn под общим мьютексом; ошибка восстанавливает снимок.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.state.clone()
	if err := fn(ctx, &memTx{state: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type memTx struct {
	state *state
}

func (t *memTx) Orders() domain.OrderRepository      { return &orderRepository{state: t.state} }
func (t *memTx) Inventory() domain.InventoryLedger   { return &inventoryLedger{state: t.state} }
func (t *memTx) Payments() domain.PaymentRepository  { return &paymentRepository{state: t.state} }
func (t *memTx) Carts() domain.CartRepository        { return &cartRepository{state: t.state} }
func (t *memTx) Timeline() domain.TimelineRepository { return &timelineRepository{state: t.state} }

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*memTx)(nil)
