package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	state *state
}

func cloneOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	if order.ExpiresAt != nil {
		expires := *order.ExpiresAt
		order.ExpiresAt = &expires
	}
	return order
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	if _, exists := r.state.orders[order.ID]; exists {
		return domain.ErrConcurrencyLost
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.state.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	order, ok := r.state.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error) {
	result := make([]domain.Order, 0)
	for _, order := range r.state.orders {
		if order.BuyerID != buyerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, expiresAt *time.Time) error {
	order, ok := r.state.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status != from {
		// Нулевой эффект условного обновления: статус уже сменил другой актор.
		return domain.ErrConcurrencyLost
	}
	order.Status = to
	order.ExpiresAt = nil
	if expiresAt != nil {
		expires := *expiresAt
		order.ExpiresAt = &expires
	}
	order.UpdatedAt = time.Now().UTC()
	r.state.orders[id] = order
	return nil
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	order, ok := r.state.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.PaymentIntentID = intentID
	order.UpdatedAt = time.Now().UTC()
	r.state.orders[id] = order
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	if _, ok := r.state.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.state.orders, id)
	delete(r.state.timeline, id)
	return nil
}

func (r *orderRepository) DeleteLine(ctx context.Context, orderID, lineID string) (int, error) {
	order, ok := r.state.orders[orderID]
	if !ok {
		return 0, domain.ErrOrderNotFound
	}

	lines := make([]domain.OrderLine, 0, len(order.Lines))
	found := false
	for _, line := range order.Lines {
		if line.ID == lineID {
			found = true
			continue
		}
		lines = append(lines, line)
	}
	if !found {
		return len(order.Lines), domain.ErrOrderLineNotFound
	}

	order.Lines = lines
	order.UpdatedAt = time.Now().UTC()
	r.state.orders[orderID] = order
	return len(lines), nil
}

func (r *orderRepository) ListExpiredAwaiting(ctx context.Context, before time.Time, limit int) ([]string, error) {
	ids := make([]string, 0)
	for _, order := range r.state.orders {
		if order.Status != domain.OrderStatusAwaitingPayment {
			continue
		}
		if order.ExpiresAt == nil || order.ExpiresAt.After(before) {
			continue
		}
		ids = append(ids, order.ID)
	}

	// Стабильный порядок: старые дедлайны первыми.
	sort.Slice(ids, func(i, j int) bool {
		a := r.state.orders[ids[i]]
		b := r.state.orders[ids[j]]
		if !a.ExpiresAt.Equal(*b.ExpiresAt) {
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		return ids[i] < ids[j]
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
