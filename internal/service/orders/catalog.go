package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// CreateProduct регистрирует товар в каталоге. Доступно только оператору.
func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, product domain.Product) (domain.Product, error) {
	if !actor.Admin() {
		return domain.Product{}, domain.ErrForbidden
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Inventory().CreateProduct(ctx, product)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// GetProduct возвращает товар каталога.
func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var getErr error
		product, getErr = tx.Inventory().Get(ctx, productID)
		return getErr
	})
	return product, err
}

// AddToCart добавляет товар в корзину покупателя. Существующая строка
// по тому же товару получает добавку количества.
// Остаток не проверяется: корзина — намерение, резерв появляется только
// при инициации оплаты.
func (s *Service) AddToCart(ctx context.Context, actor domain.Actor, productID string, qty int32) error {
	if actor.ID == "" {
		return domain.ErrBuyerRequired
	}
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	return s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Inventory().Get(ctx, productID); err != nil {
			return err
		}
		return tx.Carts().Merge(ctx, actor.ID, productID, qty)
	})
}

// CartLines возвращает активные строки корзины покупателя.
func (s *Service) CartLines(ctx context.Context, actor domain.Actor) ([]domain.CartLine, error) {
	if actor.ID == "" {
		return nil, domain.ErrBuyerRequired
	}
	var lines []domain.CartLine
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var listErr error
		lines, listErr = tx.Carts().ActiveLines(ctx, actor.ID)
		return listErr
	})
	return lines, err
}
