package ledger

import (
	"context"
	"database/sql"

	"renthub-platform/pkg/utils"
)

// PostgresRepo persists entries in the ledger_entries table.
//
// Expected schema:
// - ledger_entries(id uuid pk, user_id, kind, amount_minor, reference_id,
//   created_at)
// - partial unique index on (kind, reference_id) WHERE kind IN
//   ('deposit','withdrawal') backing the exactly-once guard; the in-tx
//   check below exists for a clean sentinel error, the index is the fence.
//
// Per-user writes are serialized with a transaction-scoped advisory lock so
// the sufficient-funds check and the append see the same ledger.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Entry) (int64, error) {
	var balance int64
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := utils.AdvisoryLockTx(ctx, tx, "ledger:"+e.UserID); err != nil {
			return err
		}

		if e.Kind.ExactlyOnce() {
			var exists bool
			const dupQ = `
SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE kind = $1 AND reference_id = $2)
`
			if err := tx.QueryRowContext(ctx, dupQ, e.Kind, e.ReferenceID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrDuplicateReference
			}
		}

		if e.AmountMinor < 0 {
			current, err := sumForUpdate(ctx, tx, e.UserID)
			if err != nil {
				return err
			}
			if current+e.AmountMinor < 0 {
				return ErrInsufficientFunds
			}
		}

		const insQ = `
INSERT INTO ledger_entries (id, user_id, kind, amount_minor, reference_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
		if _, err := tx.ExecContext(ctx, insQ, e.ID, e.UserID, e.Kind, e.AmountMinor, e.ReferenceID, e.CreatedAt); err != nil {
			return err
		}

		b, err := sumForUpdate(ctx, tx, e.UserID)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *PostgresRepo) Balance(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id = $1`
	var sum int64
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *PostgresRepo) List(ctx context.Context, userID string) ([]Entry, error) {
	const q = `
SELECT id, user_id, kind, amount_minor, reference_id, created_at
FROM ledger_entries
WHERE user_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.AmountMinor, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func sumForUpdate(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id = $1`
	var sum int64
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
