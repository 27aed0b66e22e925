package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists intents in the payment_intents table.
//
// Expected schema:
// - payment_intents(id uuid pk, user_id, amount_minor, code, status,
//   description, qr_payload, created_at, expires_at, updated_at)
// - partial unique index on (code) WHERE status IN
//   ('created','qr_issued','matched','needs_review') backing the matching
//   code uniqueness the generator relies on.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const intentColumns = `id, user_id, amount_minor, code, status, description, qr_payload, created_at, expires_at, updated_at`

func scanIntent(row interface{ Scan(...any) error }) (Intent, error) {
	var i Intent
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.AmountMinor,
		&i.Code,
		&i.Status,
		&i.Description,
		&i.QRPayload,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (r *PostgresRepo) Insert(ctx context.Context, i Intent) error {
	const q = `
INSERT INTO payment_intents (` + intentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		i.ID, i.UserID, i.AmountMinor, i.Code, i.Status,
		i.Description, i.QRPayload, i.CreatedAt, i.ExpiresAt, i.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`
	i, err := scanIntent(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Intent{}, ErrNotFound
		}
		return Intent{}, err
	}
	return i, nil
}

func (r *PostgresRepo) CodeActive(ctx context.Context, code string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM payment_intents
  WHERE code = $1 AND status IN ('created','qr_issued','matched','needs_review')
)
`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) SetQRIssued(ctx context.Context, id, payload string, now time.Time) (Intent, bool, error) {
	const q = `
UPDATE payment_intents
SET status = 'qr_issued', qr_payload = $2, updated_at = $3
WHERE id = $1 AND status = 'created'
RETURNING ` + intentColumns
	i, err := scanIntent(r.db.QueryRowContext(ctx, q, id, payload, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// CAS missed; surface the current row so the caller can decide.
			cur, gerr := r.Get(ctx, id)
			if gerr != nil {
				return Intent{}, false, gerr
			}
			return cur, false, nil
		}
		return Intent{}, false, err
	}
	return i, true, nil
}

func (r *PostgresRepo) ExpireDue(ctx context.Context, now time.Time) ([]Intent, error) {
	const q = `
UPDATE payment_intents
SET status = 'expired', updated_at = $1
WHERE status IN ('created','qr_issued') AND expires_at < $1
RETURNING ` + intentColumns
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
