package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
	"renthub-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresStore implements the settlement writer gate on the same database
// that holds payment_intents and ledger_entries, which is what lets Settle
// be one transaction.
//
// Expected schema:
// - bank_feed_lines(id text pk, description, amount_minor, posted_at,
//   consumed_at timestamptz null, review bool default false)
// The primary key on id is the duplicate-delivery fence.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveLine(ctx context.Context, line FeedLine) (bool, error) {
	const q = `
INSERT INTO bank_feed_lines (id, description, amount_minor, posted_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q, line.ID, line.Description, line.AmountMinor, line.PostedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *PostgresStore) UnconsumedLines(ctx context.Context) ([]FeedLine, error) {
	const q = `
SELECT id, description, amount_minor, posted_at
FROM bank_feed_lines
WHERE consumed_at IS NULL
ORDER BY posted_at, id
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeedLine
	for rows.Next() {
		var l FeedLine
		if err := rows.Scan(&l.ID, &l.Description, &l.AmountMinor, &l.PostedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const candidateColumns = `id, user_id, amount_minor, code, status, description, qr_payload, created_at, expires_at, updated_at`

func (s *PostgresStore) ActiveCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM payment_intents
WHERE status IN ('created','qr_issued')
  AND amount_minor = $1
  AND position(code in $2) > 0
ORDER BY created_at
`
	return s.queryIntents(ctx, q, line.AmountMinor, line.Description)
}

func (s *PostgresStore) ExpiredCandidates(ctx context.Context, line FeedLine) ([]payment.Intent, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM payment_intents
WHERE status = 'expired'
  AND amount_minor = $1
  AND position(code in $2) > 0
ORDER BY created_at
`
	return s.queryIntents(ctx, q, line.AmountMinor, line.Description)
}

// Settle is the exactly-once core: consuming the feed line, walking the
// intent through matched to completed, and appending the deposit entry all
// commit or roll back together. The guards are row conditions, so a racing
// transaction sees zero rows affected and reports ok=false.
func (s *PostgresStore) Settle(ctx context.Context, lineID string, intent payment.Intent, now time.Time) (payment.Intent, bool, error) {
	settled := intent
	won := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const consumeQ = `
UPDATE bank_feed_lines SET consumed_at = $2
WHERE id = $1 AND consumed_at IS NULL
`
		if ok, err := execCAS(ctx, tx, consumeQ, lineID, now); err != nil || !ok {
			return err
		}

		const matchQ = `
UPDATE payment_intents SET status = 'matched', updated_at = $2
WHERE id = $1 AND status IN ('created','qr_issued') AND expires_at > $2
`
		matchedOK, err := execCAS(ctx, tx, matchQ, intent.ID, now)
		if err != nil {
			return err
		}
		if !matchedOK {
			// Roll everything back, including the line consumption.
			return errCASMissed
		}

		if err := utils.AdvisoryLockTx(ctx, tx, "ledger:"+intent.UserID); err != nil {
			return err
		}
		var exists bool
		const dupQ = `
SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE kind = $1 AND reference_id = $2)
`
		if err := tx.QueryRowContext(ctx, dupQ, ledger.KindDeposit, intent.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			// The unique index already holds a credit for this intent;
			// abort so the status rollback keeps intent and ledger in step.
			return errCASMissed
		}
		const insQ = `
INSERT INTO ledger_entries (id, user_id, kind, amount_minor, reference_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
		if _, err := tx.ExecContext(ctx, insQ, uuid.NewString(), intent.UserID, ledger.KindDeposit, intent.AmountMinor, intent.ID, now); err != nil {
			return err
		}

		const completeQ = `
UPDATE payment_intents SET status = 'completed', updated_at = $2
WHERE id = $1 AND status = 'matched'
RETURNING ` + candidateColumns
		row := tx.QueryRowContext(ctx, completeQ, intent.ID, now)
		i, err := scanIntentRow(row)
		if err != nil {
			return err
		}
		settled = i
		won = true
		return nil
	})
	if errors.Is(err, errCASMissed) {
		return intent, false, nil
	}
	if err != nil {
		return intent, false, err
	}
	return settled, won, nil
}

func (s *PostgresStore) FlagForReview(ctx context.Context, lineID string, intents []payment.Intent, now time.Time) ([]payment.Intent, error) {
	var flagged []payment.Intent
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const consumeQ = `
UPDATE bank_feed_lines SET consumed_at = $2, review = TRUE
WHERE id = $1 AND consumed_at IS NULL
`
		if ok, err := execCAS(ctx, tx, consumeQ, lineID, now); err != nil || !ok {
			if err != nil {
				return err
			}
			return errCASMissed
		}

		const flagQ = `
UPDATE payment_intents SET status = 'needs_review', updated_at = $2
WHERE id = $1 AND status IN ('created','qr_issued','expired')
RETURNING ` + candidateColumns
		for _, intent := range intents {
			row := tx.QueryRowContext(ctx, flagQ, intent.ID, now)
			i, err := scanIntentRow(row)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			flagged = append(flagged, i)
		}
		if len(flagged) == 0 {
			// Every candidate moved on concurrently. Release the line so the
			// transfer stays visible in the snapshot instead of vanishing.
			return errCASMissed
		}
		return nil
	})
	if errors.Is(err, errCASMissed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time) ([]payment.Intent, error) {
	return payment.NewPostgresRepo(s.db).ExpireDue(ctx, now)
}

func (s *PostgresStore) ListNeedsReview(ctx context.Context) ([]payment.Intent, error) {
	const q = `
SELECT ` + candidateColumns + `
FROM payment_intents
WHERE status = 'needs_review'
ORDER BY created_at
`
	return s.queryIntents(ctx, q)
}

func (s *PostgresStore) ResolveReview(ctx context.Context, intentID string, approve bool, now time.Time) (payment.Intent, bool, error) {
	resolved := payment.Intent{}
	won := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		target := "failed"
		if approve {
			target = "completed"
		}

		const getQ = `
SELECT ` + candidateColumns + `
FROM payment_intents WHERE id = $1 FOR UPDATE
`
		intent, err := scanIntentRow(tx.QueryRowContext(ctx, getQ, intentID))
		if errors.Is(err, sql.ErrNoRows) {
			return payment.ErrNotFound
		}
		if err != nil {
			return err
		}
		resolved = intent
		if intent.Status != payment.StatusNeedsReview {
			return errCASMissed
		}

		if approve {
			if err := utils.AdvisoryLockTx(ctx, tx, "ledger:"+intent.UserID); err != nil {
				return err
			}
			var exists bool
			const dupQ = `
SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE kind = $1 AND reference_id = $2)
`
			if err := tx.QueryRowContext(ctx, dupQ, ledger.KindDeposit, intent.ID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return errCASMissed
			}
			const insQ = `
INSERT INTO ledger_entries (id, user_id, kind, amount_minor, reference_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
			if _, err := tx.ExecContext(ctx, insQ, uuid.NewString(), intent.UserID, ledger.KindDeposit, intent.AmountMinor, intent.ID, now); err != nil {
				return err
			}
		}

		const updQ = `
UPDATE payment_intents SET status = $2, updated_at = $3
WHERE id = $1 AND status = 'needs_review'
RETURNING ` + candidateColumns
		i, err := scanIntentRow(tx.QueryRowContext(ctx, updQ, intentID, target, now))
		if err != nil {
			return err
		}
		resolved = i
		won = true
		return nil
	})
	if errors.Is(err, errCASMissed) {
		return resolved, false, nil
	}
	if err != nil {
		return payment.Intent{}, false, err
	}
	return resolved, won, nil
}

var errCASMissed = errors.New("settlement: compare-and-set missed")

func execCAS(ctx context.Context, tx *sql.Tx, q string, args ...any) (bool, error) {
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) queryIntents(ctx context.Context, q string, args ...any) ([]payment.Intent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.Intent
	for rows.Next() {
		i, err := scanIntentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIntentRow(row interface{ Scan(...any) error }) (payment.Intent, error) {
	var i payment.Intent
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
