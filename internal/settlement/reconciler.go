package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"renthub-platform/internal/notify"
	"renthub-platform/internal/payment"
)

var ErrNotReviewable = errors.New("settlement: intent not awaiting review")

// Reconciler matches bank feed lines to pending payment intents and owns
// every intent status transition past qr_issued.
//
// It is invoked from independent, racing triggers: the feed consumer
// (Apply), client-driven polling (CheckNow), pushed gateway events
// (HandlePush), and the expiry sweep. All of them converge on the store's
// atomic compare-and-set operations, so duplicate triggers are safe by
// construction rather than by locking discipline.
type Reconciler struct {
	store    Store
	payments *payment.Service
	notifier notify.Notifier
	log      *slog.Logger
	clock    func() time.Time
}

func NewReconciler(store Store, payments *payment.Service, notifier notify.Notifier, log *slog.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:    store,
		payments: payments,
		notifier: notifier,
		log:      log,
		clock:    time.Now,
	}
}

// Apply ingests one feed line and runs a reconciliation pass over it.
// Duplicate delivery of an already-consumed line is a silent no-op.
func (r *Reconciler) Apply(ctx context.Context, line FeedLine) (Result, error) {
	if line.ID == "" {
		return Result{}, fmt.Errorf("settlement: feed line id required")
	}

	alreadySeen, err := r.store.SaveLine(ctx, line)
	if err != nil {
		return Result{}, fmt.Errorf("settlement: save line: %w", err)
	}
	if alreadySeen {
		r.log.Debug("feed line redelivered", "line_id", line.ID)
	}
	// Redelivered lines still get a pass: if the first delivery matched
	// nothing the snapshot may match now. Settle's consumed guard makes
	// the pass a no-op when the line already settled.
	return r.reconcileLine(ctx, line)
}

// CheckNow forces an immediate reconciliation pass for one intent against
// the latest known feed snapshot. This is the client-poll trigger; it uses
// the same transition primitive as Apply so racing the feed consumer is
// harmless.
func (r *Reconciler) CheckNow(ctx context.Context, intentID string) (payment.Intent, error) {
	intent, err := r.payments.Get(ctx, intentID)
	if err != nil {
		return payment.Intent{}, err
	}
	if intent.Status.Terminal() {
		return intent, nil
	}

	lines, err := r.store.UnconsumedLines(ctx)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("settlement: list snapshot: %w", err)
	}
	for _, line := range lines {
		if !Matches(intent, line) {
			continue
		}
		if _, err := r.reconcileLine(ctx, line); err != nil {
			return payment.Intent{}, err
		}
	}
	return r.payments.Get(ctx, intentID)
}

// HandlePush reacts to a gateway push event. The payload's status field is
// advisory and deliberately ignored; the event is only a trigger for an
// authoritative pass.
func (r *Reconciler) HandlePush(ctx context.Context, evt PushEvent) (payment.Intent, error) {
	if evt.IntentID == "" {
		return payment.Intent{}, fmt.Errorf("settlement: push event intent id required")
	}
	r.log.Debug("push event received", "intent_id", evt.IntentID, "claimed_status", evt.Status)
	return r.CheckNow(ctx, evt.IntentID)
}

// SweepExpired moves overdue created/qr_issued intents to expired and
// emits hints. Runs on a fixed interval; idempotent against concurrent
// reconciliation because the underlying transition is a compare-and-set.
func (r *Reconciler) SweepExpired(ctx context.Context) ([]payment.Intent, error) {
	expired, err := r.store.ExpireDue(ctx, r.clock().UTC())
	if err != nil {
		return nil, fmt.Errorf("settlement: expiry sweep: %w", err)
	}
	for _, intent := range expired {
		r.payments.ReleaseSlot(ctx, intent.UserID)
		r.hint(ctx, intent)
	}
	if len(expired) > 0 {
		r.log.Info("expiry sweep", "expired", len(expired))
	}
	return expired, nil
}

// RunSweeper blocks, running SweepExpired on the interval until ctx ends.
func (r *Reconciler) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.SweepExpired(ctx); err != nil {
				r.log.Error("expiry sweep failed", "err", err)
			}
		}
	}
}

// ListNeedsReview returns the manual resolution queue for admins.
func (r *Reconciler) ListNeedsReview(ctx context.Context) ([]payment.Intent, error) {
	return r.store.ListNeedsReview(ctx)
}

// ResolveReview is the admin action closing a needs_review intent.
// Approval credits the deposit (exactly once, guarded by the ledger
// reference constraint) and completes the intent in one atomic unit.
func (r *Reconciler) ResolveReview(ctx context.Context, intentID string, approve bool) (payment.Intent, error) {
	intent, ok, err := r.store.ResolveReview(ctx, intentID, approve, r.clock().UTC())
	if err != nil {
		return payment.Intent{}, err
	}
	if !ok {
		return intent, ErrNotReviewable
	}
	r.payments.ReleaseSlot(ctx, intent.UserID)
	r.hint(ctx, intent)
	return intent, nil
}

// reconcileLine is the one matching pass every trigger converges on.
func (r *Reconciler) reconcileLine(ctx context.Context, line FeedLine) (Result, error) {
	now := r.clock().UTC()

	active, err := r.store.ActiveCandidates(ctx, line)
	if err != nil {
		return Result{}, fmt.Errorf("settlement: match candidates: %w", err)
	}

	// The TTL clock is authoritative, not the status column: a candidate
	// whose deadline passed before the sweep got to it must never settle.
	var live, overdue []payment.Intent
	for _, intent := range active {
		if intent.ExpiredBy(now) {
			overdue = append(overdue, intent)
		} else {
			live = append(live, intent)
		}
	}

	switch {
	case len(live) == 0:
		// Money may have arrived for an intent the user already abandoned,
		// whether or not the sweep marked it expired yet.
		expired, err := r.store.ExpiredCandidates(ctx, line)
		if err != nil {
			return Result{}, fmt.Errorf("settlement: expired candidates: %w", err)
		}
		late := append(overdue, expired...)
		if len(late) == 0 {
			return Result{Outcome: OutcomeNoMatch, LineID: line.ID}, nil
		}
		flagged, err := r.store.FlagForReview(ctx, line.ID, late, now)
		if err != nil {
			return Result{}, fmt.Errorf("settlement: flag late match: %w", err)
		}
		for _, intent := range flagged {
			r.hint(ctx, intent)
		}
		r.log.Warn("late transfer for expired intent", "line_id", line.ID, "intents", len(flagged))
		return Result{Outcome: OutcomeLateMatch, LineID: line.ID, Intents: flagged}, nil

	case len(live) == 1 && len(overdue) == 0:
		intent := live[0]
		settled, ok, err := r.store.Settle(ctx, line.ID, intent, now)
		if err != nil {
			return Result{}, fmt.Errorf("settlement: settle intent %s: %w", intent.ID, err)
		}
		if !ok {
			// A concurrent trigger got there first. By construction that
			// pass did the credit; nothing left to do.
			return Result{Outcome: OutcomeDuplicate, LineID: line.ID}, nil
		}
		r.payments.ReleaseSlot(ctx, settled.UserID)
		r.hint(ctx, settled)
		r.log.Info("deposit settled",
			"intent_id", settled.ID,
			"line_id", line.ID,
			"amount_minor", settled.AmountMinor,
		)
		return Result{Outcome: OutcomeSettled, LineID: line.ID, Intents: []payment.Intent{settled}}, nil

	default:
		// Duplicate live matching codes should not occur; when they do,
		// guessing which intent the transfer belongs to is how money gets
		// credited to the wrong user. The same holds when one live match
		// shares the line with an overdue one. Park everything for a human.
		flagged, err := r.store.FlagForReview(ctx, line.ID, append(live, overdue...), now)
		if err != nil {
			return Result{}, fmt.Errorf("settlement: flag ambiguous match: %w", err)
		}
		for _, intent := range flagged {
			r.hint(ctx, intent)
		}
		r.log.Warn("ambiguous feed line", "line_id", line.ID, "candidates", len(flagged))
		return Result{Outcome: OutcomeAmbiguous, LineID: line.ID, Intents: flagged}, nil
	}
}

// hint emits an advisory status notification. Failures are logged, never
// propagated: notification transport is outside this core's guarantees.
func (r *Reconciler) hint(ctx context.Context, intent payment.Intent) {
	err := r.notifier.PaymentChanged(ctx, notify.Hint{
		IntentID:    intent.ID,
		UserID:      intent.UserID,
		Status:      string(intent.Status),
		AmountMinor: intent.AmountMinor,
		Description: intent.Description,
	})
	if err != nil {
		r.log.Warn("status hint delivery failed", "intent_id", intent.ID, "err", err)
	}
}
