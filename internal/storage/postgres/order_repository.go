package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// orderRepository — PostgreSQL-реализация OrderRepository в рамках транзакции.
type orderRepository struct {
	tx *sql.Tx
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, status, shipping_address, payment_intent_id, expires_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.ID, order.BuyerID, string(order.Status), order.ShippingAddress,
		nullString(order.PaymentIntentID), order.ExpiresAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrencyLost
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err := r.tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, product_id, title, qty, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			line.ID, order.ID, line.ProductID, line.Title, line.Qty, line.PriceMinor, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		order    domain.Order
		status   string
		intentID sql.NullString
	)

	err := r.tx.QueryRowContext(ctx, `
		SELECT id, buyer_id, status, shipping_address, payment_intent_id, expires_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.BuyerID, &status, &order.ShippingAddress,
		&intentID, &order.ExpiresAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentIntentID = intentID.String

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error) {
	query := `
		SELECT id, buyer_id, status, shipping_address, payment_intent_id, expires_at, created_at, updated_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.tx.QueryContext(ctx, query+" LIMIT $2", buyerID, limit)
	} else {
		rows, err = r.tx.QueryContext(ctx, query, buyerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			order    domain.Order
			status   string
			intentID sql.NullString
		)
		if err := rows.Scan(
			&order.ID, &order.BuyerID, &status, &order.ShippingAddress,
			&intentID, &order.ExpiresAt, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		order.PaymentIntentID = intentID.String
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		lines, err := r.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, expiresAt *time.Time) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    expires_at = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND status = $4
	`, string(to), expiresAt, id, string(from))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("status rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrConcurrencyLost
	}
	return nil
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_intent_id = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, intentID, id)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("intent rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.tx.ExecContext(ctx, `DELETE FROM order_timeline WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order timeline: %w", err)
	}
	if _, err := r.tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}

	res, err := r.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) DeleteLine(ctx context.Context, orderID, lineID string) (int, error) {
	res, err := r.tx.ExecContext(ctx, `
		DELETE FROM order_lines
		WHERE id = $1
		  AND order_id = $2
	`, lineID, orderID)
	if err != nil {
		return 0, fmt.Errorf("delete order line: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete line rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, domain.ErrOrderNotFound
		}
		return 0, domain.ErrOrderLineNotFound
	}

	var remaining int
	if err := r.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM order_lines WHERE order_id = $1
	`, orderID).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("count remaining lines: %w", err)
	}
	return remaining, nil
}

func (r *orderRepository) ListExpiredAwaiting(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.tx.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE status = $1
		  AND expires_at IS NOT NULL
		  AND expires_at <= $2
		ORDER BY expires_at ASC, id ASC
		LIMIT $3
	`, string(domain.OrderStatusAwaitingPayment), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired order ids: %w", err)
	}

	return ids, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, title, qty, price_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Title,
			&line.Qty, &line.PriceMinor, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
