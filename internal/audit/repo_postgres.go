package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table. Insert-only; the
// table is expected to reject UPDATE and DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, actor_role, ip_address, payment_intent_id, withdrawal_id, feed_line_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.PaymentIntentID, e.WithdrawalID, e.FeedLineID,
		e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
