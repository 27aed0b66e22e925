package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument    = errors.New("ledger: invalid argument")
	ErrDuplicateReference = errors.New("ledger: reference already credited")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
)

// Service exposes credit/debit/balance on top of the append-only store.
// Callers pass positive amounts; the sign is derived from the operation.
type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// Credit appends a positive entry and returns it with the new balance.
func (s *Service) Credit(ctx context.Context, userID string, amountMinor int64, kind Kind, referenceID string) (Entry, int64, error) {
	e, err := s.buildEntry(userID, amountMinor, kind, referenceID)
	if err != nil {
		return Entry{}, 0, err
	}
	balance, err := s.store.Append(ctx, e)
	if err != nil {
		return Entry{}, 0, err
	}
	return e, balance, nil
}

// Debit appends a negative entry. Fails ErrInsufficientFunds if the balance
// would go negative, computed against the ledger at the instant of the
// debit.
func (s *Service) Debit(ctx context.Context, userID string, amountMinor int64, kind Kind, referenceID string) (Entry, int64, error) {
	e, err := s.buildEntry(userID, amountMinor, kind, referenceID)
	if err != nil {
		return Entry{}, 0, err
	}
	e.AmountMinor = -e.AmountMinor
	balance, err := s.store.Append(ctx, e)
	if err != nil {
		return Entry{}, 0, err
	}
	return e, balance, nil
}

// Balance is always ledger-derived.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	return s.store.Balance(ctx, userID)
}

// History lists a user's entries oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.List(ctx, userID)
}

func (s *Service) buildEntry(userID string, amountMinor int64, kind Kind, referenceID string) (Entry, error) {
	if userID == "" {
		return Entry{}, ErrInvalidArgument
	}
	if amountMinor <= 0 {
		return Entry{}, ErrInvalidArgument
	}
	if !kind.Valid() {
		return Entry{}, ErrInvalidArgument
	}
	if kind.ExactlyOnce() && referenceID == "" {
		return Entry{}, ErrInvalidArgument
	}
	return Entry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		AmountMinor: amountMinor,
		ReferenceID: referenceID,
		CreatedAt:   s.clock().UTC(),
	}, nil
}
