package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Records are never exposed to tenant users.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogWithdrawalDecision records a finance approval or rejection.
func (s *Service) LogWithdrawalDecision(ctx context.Context, actorUserID, actorRole, ip, withdrawalID, decision, metadata string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeWithdrawalDecision,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		WithdrawalID: withdrawalID,
		Message:      "withdrawal " + decision,
		Metadata:     metadata,
	})
}

// LogReviewResolution records an admin closing a needs_review intent.
func (s *Service) LogReviewResolution(ctx context.Context, actorUserID, actorRole, ip, intentID, resolution, metadata string) error {
	return s.Append(ctx, Event{
		Type:            EventTypeReviewResolution,
		ActorUserID:     actorUserID,
		ActorRole:       actorRole,
		IPAddress:       ip,
		PaymentIntentID: intentID,
		Message:         "review " + resolution,
		Metadata:        metadata,
	})
}

// LogAdminAction records any other privileged operation.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
		Metadata:    metadata,
	})
}
