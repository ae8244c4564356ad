package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// cartRepository — in-memory реализация CartRepository.
type cartRepository struct {
	state *state
}

func (r *cartRepository) Create(ctx context.Context, line domain.CartLine) error {
	if errs := line.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}
	line.UpdatedAt = line.CreatedAt
	r.state.cartLines[line.ID] = line
	return nil
}

func (r *cartRepository) ActiveLines(ctx context.Context, buyerID string) ([]domain.CartLine, error) {
	result := make([]domain.CartLine, 0)
	for _, line := range r.state.cartLines {
		if line.BuyerID != buyerID || !line.Active {
			continue
		}
		result = append(result, line)
	}
	return result, nil
}

func (r *cartRepository) Deactivate(ctx context.Context, buyerID string, productIDs []string) error {
	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	for id, line := range r.state.cartLines {
		if line.BuyerID != buyerID {
			continue
		}
		if _, ok := wanted[line.ProductID]; !ok {
			continue
		}
		line.Active = false
		line.Qty = 0
		line.UpdatedAt = time.Now().UTC()
		r.state.cartLines[id] = line
	}
	return nil
}

func (r *cartRepository) Merge(ctx context.Context, buyerID, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	for id, line := range r.state.cartLines {
		if line.BuyerID != buyerID || line.ProductID != productID {
			continue
		}
		line.Qty += qty
		line.Active = true
		line.UpdatedAt = time.Now().UTC()
		r.state.cartLines[id] = line
		return nil
	}

	now := time.Now().UTC()
	line := domain.CartLine{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		ProductID: productID,
		Qty:       qty,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.state.cartLines[line.ID] = line
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
