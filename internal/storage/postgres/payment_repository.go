package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// paymentRepository — PostgreSQL-реализация PaymentRepository.
// Уникальный индекс payments(external_id) — финальный страховочный механизм
// идемпотентности: нарушение трактуется как "уже обработано", не как сбой.
type paymentRepository struct {
	tx *sql.Tx
}

func (r *paymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	if errs := payment.Validate(); len(errs) > 0 {
		return errs[0]
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, external_id, status, amount_minor, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
	`,
		payment.ID, payment.OrderID, payment.ExternalID,
		string(payment.Status), payment.AmountMinor,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyProcessed
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, externalID string) (domain.Payment, error) {
	var (
		payment domain.Payment
		status  string
	)

	err := r.tx.QueryRowContext(ctx, `
		SELECT id, order_id, external_id, status, amount_minor, created_at, updated_at
		FROM payments
		WHERE external_id = $1
	`, externalID).Scan(
		&payment.ID, &payment.OrderID, &payment.ExternalID,
		&status, &payment.AmountMinor, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	payment.Status = domain.PaymentStatus(status)

	return payment, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, order_id, external_id, status, amount_minor, created_at, updated_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			payment domain.Payment
			status  string
		)
		if err := rows.Scan(
			&payment.ID, &payment.OrderID, &payment.ExternalID,
			&status, &payment.AmountMinor, &payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payment.Status = domain.PaymentStatus(status)
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
