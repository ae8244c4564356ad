package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// paymentRepository — in-memory реализация PaymentRepository.
// Карта byExtID воспроизводит уникальный индекс по external_id.
type paymentRepository struct {
	state *state
}

func (r *paymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	if errs := payment.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if _, exists := r.state.byExtID[payment.ExternalID]; exists {
		return domain.ErrAlreadyProcessed
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = payment.CreatedAt
	r.state.payments[payment.ID] = payment
	r.state.byExtID[payment.ExternalID] = payment.ID
	return nil
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	id, ok := r.state.byExtID[externalID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return r.state.payments[id], nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	result := make([]domain.Payment, 0)
	for _, payment := range r.state.payments {
		if payment.OrderID != orderID {
			continue
		}
		result = append(result, payment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
