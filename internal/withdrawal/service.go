package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("withdrawal: intent not found")
	ErrAlreadyProcessed = errors.New("withdrawal: intent already processed")
	ErrInvalidAmount    = errors.New("withdrawal: invalid amount")
	ErrMissingAccount   = errors.New("withdrawal: destination account incomplete")
)

// Service exposes the withdrawal lifecycle: landlords request, finance
// approves or rejects. Funds availability is enforced by the store.
type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// WithClock overrides the time source used for intent timestamps.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Request reserves funds for a payout. The reservation is implicit: the
// pending row itself reduces the available balance seen by later requests.
func (s *Service) Request(ctx context.Context, userID string, amountMinor int64, bankName, accountNumber, holderName string) (Intent, error) {
	if userID == "" {
		return Intent{}, fmt.Errorf("withdrawal: user id required")
	}
	if amountMinor <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	if bankName == "" || accountNumber == "" || holderName == "" {
		return Intent{}, ErrMissingAccount
	}

	now := s.clock().UTC()
	intent := Intent{
		ID:            uuid.NewString(),
		UserID:        userID,
		AmountMinor:   amountMinor,
		Status:        StatusPending,
		BankName:      bankName,
		AccountNumber: accountNumber,
		HolderName:    holderName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreatePending(ctx, intent); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

// Approve debits the ledger and completes the intent. A second approval
// of the same intent is ErrAlreadyProcessed, never a second debit.
func (s *Service) Approve(ctx context.Context, id string) (Intent, error) {
	intent, ok, err := s.store.Approve(ctx, id, s.clock().UTC())
	if err != nil {
		return Intent{}, err
	}
	if !ok {
		return intent, ErrAlreadyProcessed
	}
	return intent, nil
}

// Reject closes the intent and releases its reservation.
func (s *Service) Reject(ctx context.Context, id, reason string) (Intent, error) {
	intent, ok, err := s.store.Reject(ctx, id, reason, s.clock().UTC())
	if err != nil {
		return Intent{}, err
	}
	if !ok {
		return intent, ErrAlreadyProcessed
	}
	return intent, nil
}

func (s *Service) Get(ctx context.Context, id string) (Intent, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Intent, error) {
	if userID == "" {
		return nil, fmt.Errorf("withdrawal: user id required")
	}
	return s.store.ListByUser(ctx, userID)
}

// ListPending returns the finance decision queue.
func (s *Service) ListPending(ctx context.Context) ([]Intent, error) {
	return s.store.ListPending(ctx)
}
