package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadengine/internal/domain"
)

// GetAccount loads one entitlement account. A user with no row reads as a
// default no_access account, so callers never special-case absence.
func GetAccount(ctx context.Context, q Queryer, userID string) (domain.EntitlementAccount, error) {
	var a domain.EntitlementAccount
	var status, accessUntil, updatedAt string
	err := q.QueryRowContext(ctx, `
SELECT user_id, chat_id, plan, status, access_until, updated_at
FROM entitlement_accounts WHERE user_id = ? LIMIT 1;`, userID).
		Scan(&a.UserID, &a.ChatID, &a.Plan, &status, &accessUntil, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EntitlementAccount{UserID: userID, Status: domain.AccountNoAccess}, nil
	}
	if err != nil {
		return a, err
	}
	a.Status = domain.AccountState(status)
	if accessUntil != "" {
		a.AccessUntil = parseTime(accessUntil)
	}
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func UpsertAccount(ctx context.Context, q Queryer, a domain.EntitlementAccount) error {
	accessUntil := ""
	if !a.AccessUntil.IsZero() {
		accessUntil = fmtTime(a.AccessUntil)
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO entitlement_accounts (user_id, chat_id, plan, status, access_until, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  chat_id = CASE WHEN excluded.chat_id != 0 THEN excluded.chat_id ELSE entitlement_accounts.chat_id END,
  plan = excluded.plan,
  status = excluded.status,
  access_until = excluded.access_until,
  updated_at = excluded.updated_at;`,
		a.UserID, a.ChatID, a.Plan, string(a.Status), accessUntil, fmtTime(a.UpdatedAt))
	return err
}

// ListActiveAccounts returns accounts whose access window covers now.
// Expiry is derived here, never stored.
func ListActiveAccounts(ctx context.Context, q Queryer, now time.Time) ([]domain.EntitlementAccount, error) {
	rows, err := q.QueryContext(ctx, `
SELECT user_id, chat_id, plan, status, access_until, updated_at
FROM entitlement_accounts
WHERE status = 'active' AND access_until > ?;`, fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EntitlementAccount
	for rows.Next() {
		var a domain.EntitlementAccount
		var status, accessUntil, updatedAt string
		if err := rows.Scan(&a.UserID, &a.ChatID, &a.Plan, &status, &accessUntil, &updatedAt); err != nil {
			return nil, err
		}
		a.Status = domain.AccountState(status)
		a.AccessUntil = parseTime(accessUntil)
		a.UpdatedAt = parseTime(updatedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}
