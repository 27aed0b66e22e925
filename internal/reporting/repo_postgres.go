package reporting

import (
	"context"
	"database/sql"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
)

// PostgresRepo reads immutable rows only; reporting never writes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ListLedgerEntries(ctx context.Context, userID string, from, to time.Time) ([]ledger.Entry, error) {
	const q = `
SELECT id, user_id, kind, amount_minor, reference_id, created_at
FROM ledger_entries
WHERE ($1 = '' OR user_id = $1) AND created_at >= $2 AND created_at < $3
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.AmountMinor, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListIntents(ctx context.Context, from, to time.Time) ([]payment.Intent, error) {
	const q = `
SELECT id, user_id, amount_minor, code, status, description, qr_payload, created_at, expires_at, updated_at
FROM payment_intents
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Intent
	for rows.Next() {
		var i payment.Intent
		if err := rows.Scan(&i.ID, &i.UserID, &i.AmountMinor, &i.Code, &i.Status, &i.Description, &i.QRPayload, &i.CreatedAt, &i.ExpiresAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
