package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// cartRepository — PostgreSQL-реализация CartRepository.
// Уникальный индекс cart_lines(buyer_id, product_id) позволяет выразить
// merge-or-create одним INSERT ... ON CONFLICT.
type cartRepository struct {
	tx *sql.Tx
}

func (r *cartRepository) Create(ctx context.Context, line domain.CartLine) error {
	if errs := line.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if line.ID == "" {
		line.ID = uuid.NewString()
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO cart_lines (
			id, buyer_id, product_id, qty, active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
	`,
		line.ID, line.BuyerID, line.ProductID, line.Qty, line.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrencyLost
		}
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (r *cartRepository) ActiveLines(ctx context.Context, buyerID string) ([]domain.CartLine, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, buyer_id, product_id, qty, active, created_at, updated_at
		FROM cart_lines
		WHERE buyer_id = $1
		  AND active
		ORDER BY created_at ASC, id ASC
	`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID, &line.BuyerID, &line.ProductID,
			&line.Qty, &line.Active, &line.CreatedAt, &line.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) Deactivate(ctx context.Context, buyerID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	_, err := r.tx.ExecContext(ctx, `
		UPDATE cart_lines
		SET active = FALSE,
		    qty = 0,
		    updated_at = NOW()
		WHERE buyer_id = $1
		  AND product_id = ANY($2)
	`, buyerID, productIDs)
	if err != nil {
		return fmt.Errorf("deactivate cart lines: %w", err)
	}
	return nil
}

func (r *cartRepository) Merge(ctx context.Context, buyerID, productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO cart_lines (
			id, buyer_id, product_id, qty, active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,TRUE,NOW(),NOW())
		ON CONFLICT (buyer_id, product_id) DO UPDATE
		SET qty = cart_lines.qty + EXCLUDED.qty,
		    active = TRUE,
		    updated_at = NOW()
	`, uuid.NewString(), buyerID, productID, qty)
	if err != nil {
		return fmt.Errorf("merge cart line: %w", err)
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
