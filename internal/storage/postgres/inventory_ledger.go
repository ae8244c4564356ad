package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// inventoryLedger — PostgreSQL-реализация InventoryLedger.
// Каждая операция — одно условное UPDATE: guard в WHERE вместо блокировок,
// исход читается из RowsAffected.
type inventoryLedger struct {
	tx *sql.Tx
}

func (l *inventoryLedger) CreateProduct(ctx context.Context, product domain.Product) error {
	_, err := l.tx.ExecContext(ctx, `
		INSERT INTO products (
			id, title, price_minor, promo_price_minor, stock, reserved, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
	`,
		product.ID, product.Title, product.PriceMinor, product.PromoPriceMinor,
		product.Stock, product.Reserved,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrencyLost
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (l *inventoryLedger) Get(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := l.tx.QueryRowContext(ctx, `
		SELECT id, title, price_minor, promo_price_minor, stock, reserved, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(
		&product.ID, &product.Title, &product.PriceMinor, &product.PromoPriceMinor,
		&product.Stock, &product.Reserved, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (l *inventoryLedger) Reserve(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	res, err := l.tx.ExecContext(ctx, `
		UPDATE products
		SET reserved = reserved + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock - reserved >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := l.productExists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (l *inventoryLedger) Release(ctx context.Context, productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrQtyInvalid
	}

	res, err := l.tx.ExecContext(ctx, `
		UPDATE products
		SET reserved = reserved - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND reserved >= $2
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("release stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := l.productExists(ctx, productID)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, domain.ErrProductNotFound
		}
		// Нулевой эффект: резерв уже снят конкурентным актором.
		return false, nil
	}
	return true, nil
}

func (l *inventoryLedger) Commit(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	res, err := l.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    reserved = reserved - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND reserved >= $2
		  AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("commit stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := l.productExists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrConcurrencyLost
	}
	return nil
}

func (l *inventoryLedger) productExists(ctx context.Context, productID string) (bool, error) {
	var id string
	err := l.tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, productID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

var _ domain.InventoryLedger = (*inventoryLedger)(nil)
