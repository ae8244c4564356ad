package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// inventoryLedger — in-memory реализация InventoryLedger.
// Условные обновления моделируются проверкой перед записью: мьютекс стора
// уже гарантирует атомарность в рамках транзакции.
type inventoryLedger struct {
	state *state
}

func (l *inventoryLedger) CreateProduct(ctx context.Context, product domain.Product) error {
	if _, exists := l.state.products[product.ID]; exists {
		return domain.ErrConcurrencyLost
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	l.state.products[product.ID] = product
	return nil
}

func (l *inventoryLedger) Get(ctx context.Context, productID string) (domain.Product, error) {
	product, ok := l.state.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (l *inventoryLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}
	product, ok := l.state.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Stock-product.Reserved < qty {
		return domain.ErrInsufficientStock
	}
	product.Reserved += qty
	product.UpdatedAt = time.Now().UTC()
	l.state.products[productID] = product
	return nil
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrQtyInvalid
	}
	product, ok := l.state.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if product.Reserved < qty {
		// Нулевой эффект: резерв уже снят конкурентным актором.
		return false, nil
	}
	product.Reserved -= qty
	product.UpdatedAt = time.Now().UTC()
	l.state.products[productID] = product
	return true, nil
}

func (l *inventoryLedger) Commit(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}
	product, ok := l.state.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Reserved < qty || product.Stock < qty {
		return domain.ErrConcurrencyLost
	}
	product.Reserved -= qty
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	l.state.products[productID] = product
	return nil
}

var _ domain.InventoryLedger = (*inventoryLedger)(nil)
