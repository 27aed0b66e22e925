package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("payment: intent not found")
	ErrInvalidAmount      = errors.New("payment: invalid amount")
	ErrInvalidState       = errors.New("payment: invalid state for operation")
	ErrCodeExhausted      = errors.New("payment: matching code generation exhausted")
	ErrTooManyOpenIntents = errors.New("payment: too many open intents")
)

// Limiter caps concurrently open deposit intents per user. Optional; a nil
// limiter disables the cap.
type Limiter interface {
	AcquireOpenIntent(ctx context.Context, userID string) (bool, error)
	ReleaseOpenIntent(ctx context.Context, userID string) error
}

// Settings govern intent creation. Zero values are replaced with defaults
// matching config defaults.
type Settings struct {
	IntentTTL      time.Duration
	MaxAmountMinor int64
	CodeLength     int
}

func (s Settings) withDefaults() Settings {
	out := s
	if out.IntentTTL <= 0 {
		out.IntentTTL = 15 * time.Minute
	}
	if out.MaxAmountMinor <= 0 {
		out.MaxAmountMinor = 500_000_000
	}
	if out.CodeLength <= 0 {
		out.CodeLength = 8
	}
	return out
}

// Service owns the deposit intent lifecycle up to the point the settlement
// reconciler takes over: create, issue QR, authoritative status reads, and
// the expiry deadline bookkeeping.
type Service struct {
	store    Store
	bank     BankAccount
	limiter  Limiter
	settings Settings
	clock    func() time.Time
}

func NewService(store Store, bank BankAccount, settings Settings) *Service {
	return &Service{
		store:    store,
		bank:     bank,
		settings: settings.withDefaults(),
		clock:    time.Now,
	}
}

// WithLimiter enables the per-user open intent cap.
func (s *Service) WithLimiter(l Limiter) *Service {
	s.limiter = l
	return s
}

// WithClock overrides the time source used for intent timestamps.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create validates the amount, reserves a unique matching code, and stores
// a new intent in created status with expiry = now + TTL.
func (s *Service) Create(ctx context.Context, userID string, amountMinor int64, description string) (Intent, error) {
	if userID == "" {
		return Intent{}, fmt.Errorf("payment: user id required")
	}
	if amountMinor <= 0 || amountMinor > s.settings.MaxAmountMinor {
		return Intent{}, ErrInvalidAmount
	}

	if s.limiter != nil {
		ok, err := s.limiter.AcquireOpenIntent(ctx, userID)
		if err != nil {
			return Intent{}, fmt.Errorf("payment: acquire intent slot: %w", err)
		}
		if !ok {
			return Intent{}, ErrTooManyOpenIntents
		}
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		if s.limiter != nil {
			_ = s.limiter.ReleaseOpenIntent(ctx, userID)
		}
		return Intent{}, err
	}

	now := s.clock().UTC()
	intent := Intent{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountMinor: amountMinor,
		Code:        code,
		Status:      StatusCreated,
		Description: description,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.settings.IntentTTL),
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, intent); err != nil {
		if s.limiter != nil {
			_ = s.limiter.ReleaseOpenIntent(ctx, userID)
		}
		return Intent{}, err
	}
	return intent, nil
}

// IssueQR transitions created -> qr_issued and returns the transfer payload.
// Idempotent while the intent stays qr_issued: the stored payload is
// returned unchanged. Any other status is ErrInvalidState.
func (s *Service) IssueQR(ctx context.Context, intentID string) (Intent, QRPayload, error) {
	intent, err := s.store.Get(ctx, intentID)
	if err != nil {
		return Intent{}, QRPayload{}, err
	}

	switch intent.Status {
	case StatusCreated:
		payload := buildQRPayload(s.bank, intent.AmountMinor, intent.Code)
		updated, ok, err := s.store.SetQRIssued(ctx, intent.ID, payload.Encode(), s.clock().UTC())
		if err != nil {
			return Intent{}, QRPayload{}, err
		}
		if !ok {
			// Lost a race; re-read and fall through to the idempotent path.
			return s.IssueQR(ctx, intentID)
		}
		return updated, payload, nil
	case StatusQRIssued:
		return intent, buildQRPayload(s.bank, intent.AmountMinor, intent.Code), nil
	default:
		return Intent{}, QRPayload{}, ErrInvalidState
	}
}

// Get is the authoritative status read used by client polling. It never
// mutates state: a stale client observing qr_issued after expiry still sees
// qr_issued until the sweep has run.
func (s *Service) Get(ctx context.Context, intentID string) (Intent, error) {
	return s.store.Get(ctx, intentID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	if userID == "" {
		return nil, fmt.Errorf("payment: user id required")
	}
	return s.store.ListByUser(ctx, userID)
}

// ReleaseSlot frees the open-intent cap slot for a user once an intent has
// reached a terminal status. Called by the settlement reconciler.
func (s *Service) ReleaseSlot(ctx context.Context, userID string) {
	if s.limiter == nil {
		return
	}
	_ = s.limiter.ReleaseOpenIntent(ctx, userID)
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode(s.settings.CodeLength)
		if err != nil {
			return "", err
		}
		taken, err := s.store.CodeActive(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
