package withdrawal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"renthub-platform/internal/ledger"
	"renthub-platform/pkg/utils"
)

// PostgresRepo persists withdrawal intents.
//
// Expected schema:
// - withdrawal_intents(id uuid pk, user_id, amount_minor, status,
//   bank_name, account_number, holder_name, reject_reason, created_at,
//   updated_at)
//
// CreatePending and Approve take the same per-user advisory lock as the
// ledger repo, so the availability check, concurrent requests, and the
// approval debit all serialize on one key.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const intentColumns = `id, user_id, amount_minor, status, bank_name, account_number, holder_name, COALESCE(reject_reason, ''), created_at, updated_at`

func (r *PostgresRepo) CreatePending(ctx context.Context, intent Intent) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := utils.AdvisoryLockTx(ctx, tx, "ledger:"+intent.UserID); err != nil {
			return err
		}

		var balance int64
		const balQ = `SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id = $1`
		if err := tx.QueryRowContext(ctx, balQ, intent.UserID).Scan(&balance); err != nil {
			return err
		}

		var reserved int64
		const resQ = `
SELECT COALESCE(SUM(amount_minor), 0)
FROM withdrawal_intents
WHERE user_id = $1 AND status = 'pending'
`
		if err := tx.QueryRowContext(ctx, resQ, intent.UserID).Scan(&reserved); err != nil {
			return err
		}

		if balance-reserved < intent.AmountMinor {
			return ledger.ErrInsufficientFunds
		}

		const insQ = `
INSERT INTO withdrawal_intents (id, user_id, amount_minor, status, bank_name, account_number, holder_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
		_, err := tx.ExecContext(ctx, insQ,
			intent.ID, intent.UserID, intent.AmountMinor, intent.Status,
			intent.BankName, intent.AccountNumber, intent.HolderName,
			intent.CreatedAt, intent.UpdatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM withdrawal_intents WHERE id = $1`
	intent, err := scanIntent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Intent{}, ErrNotFound
	}
	return intent, err
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM withdrawal_intents WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryIntents(ctx, q, userID)
}

func (r *PostgresRepo) ListPending(ctx context.Context) ([]Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM withdrawal_intents WHERE status = 'pending' ORDER BY created_at`
	return r.queryIntents(ctx, q)
}

func (r *PostgresRepo) Approve(ctx context.Context, id string, now time.Time) (Intent, bool, error) {
	var (
		intent Intent
		won    bool
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `SELECT ` + intentColumns + ` FROM withdrawal_intents WHERE id = $1 FOR UPDATE`
		current, err := scanIntent(tx.QueryRowContext(ctx, lockQ, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			intent = current
			return nil
		}

		if err := utils.AdvisoryLockTx(ctx, tx, "ledger:"+current.UserID); err != nil {
			return err
		}

		var balance int64
		const balQ = `SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id = $1`
		if err := tx.QueryRowContext(ctx, balQ, current.UserID).Scan(&balance); err != nil {
			return err
		}
		if balance < current.AmountMinor {
			return ledger.ErrInsufficientFunds
		}

		const entryQ = `
INSERT INTO ledger_entries (id, user_id, kind, amount_minor, reference_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
		if _, err := tx.ExecContext(ctx, entryQ,
			uuid.NewString(), current.UserID, ledger.KindWithdrawal,
			-current.AmountMinor, current.ID, now,
		); err != nil {
			return err
		}

		const updQ = `
UPDATE withdrawal_intents SET status = $2, updated_at = $3
WHERE id = $1 AND status = 'pending'
RETURNING ` + intentColumns
		intent, err = scanIntent(tx.QueryRowContext(ctx, updQ, id, StatusCompleted, now))
		if err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return Intent{}, false, err
	}
	return intent, won, nil
}

func (r *PostgresRepo) Reject(ctx context.Context, id, reason string, now time.Time) (Intent, bool, error) {
	const q = `
UPDATE withdrawal_intents SET status = $2, reject_reason = $3, updated_at = $4
WHERE id = $1 AND status = 'pending'
RETURNING ` + intentColumns
	intent, err := scanIntent(r.db.QueryRowContext(ctx, q, id, StatusRejected, reason, now))
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or already decided; report the current row.
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Intent{}, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return Intent{}, false, err
	}
	return intent, true, nil
}

func (r *PostgresRepo) queryIntents(ctx context.Context, q string, args ...any) ([]Intent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		var i Intent
		if err := rows.Scan(
			&i.ID, &i.UserID, &i.AmountMinor, &i.Status,
			&i.BankName, &i.AccountNumber, &i.HolderName, &i.RejectReason,
			&i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIntent(row *sql.Row) (Intent, error) {
	var i Intent
	err := row.Scan(
		&i.ID, &i.UserID, &i.AmountMinor, &i.Status,
		&i.BankName, &i.AccountNumber, &i.HolderName, &i.RejectReason,
		&i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}
