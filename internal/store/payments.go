package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadengine/internal/domain"
)

func GetPayment(ctx context.Context, q Queryer, paymentID string) (domain.Payment, error) {
	var p domain.Payment
	var status, paidAt string
	err := q.QueryRowContext(ctx, `
SELECT payment_id, user_id, plan, amount, currency, status, paid_at
FROM payments WHERE payment_id = ? LIMIT 1;`, paymentID).
		Scan(&p.PaymentID, &p.UserID, &p.Plan, &p.Amount, &p.Currency, &status, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, domain.ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Status = domain.PaymentStatus(status)
	p.PaidAt = parseTime(paidAt)
	return p, nil
}

// InsertPayment records a payment row. payment_id is the primary key, so a
// replayed confirmation cannot create a second row.
func InsertPayment(ctx context.Context, q Queryer, p domain.Payment) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO payments (payment_id, user_id, plan, amount, currency, status, paid_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		p.PaymentID, p.UserID, p.Plan, p.Amount, p.Currency, string(p.Status), fmtTime(p.PaidAt))
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func SetPaymentStatus(ctx context.Context, q Queryer, paymentID string, status domain.PaymentStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE payment_id = ?;`, string(status), paymentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
