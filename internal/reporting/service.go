package reporting

import (
	"context"
	"errors"
	"time"

	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should query immutable sources when possible (the ledger
// and intent records, never derived caches).

type Repository interface {
	ListLedgerEntries(ctx context.Context, userID string, from, to time.Time) ([]ledger.Entry, error)
	ListIntents(ctx context.Context, from, to time.Time) ([]payment.Intent, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) LedgerSummary(ctx context.Context, req LedgerSummaryRequest) (LedgerSummary, error) {
	if err := s.check(req.Range); err != nil {
		return LedgerSummary{}, err
	}

	entries, err := s.repo.ListLedgerEntries(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return LedgerSummary{}, err
	}

	out := LedgerSummary{UserID: req.UserID}
	for _, e := range entries {
		out.EntryCount++
		if e.AmountMinor > 0 {
			out.TotalCreditMinor += e.AmountMinor
		} else {
			out.TotalDebitMinor += -e.AmountMinor
		}
		switch e.Kind {
		case ledger.KindDeposit:
			out.DepositMinor += e.AmountMinor
		case ledger.KindWithdrawal:
			out.WithdrawalMinor += -e.AmountMinor
		case ledger.KindPostFee, ledger.KindSubscriptionFee:
			out.FeeMinor += -e.AmountMinor
		case ledger.KindRefund:
			// counted in credits only
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	return out, nil
}

func (s *Service) SettlementSummary(ctx context.Context, req SettlementSummaryRequest) (SettlementSummary, error) {
	if err := s.check(req.Range); err != nil {
		return SettlementSummary{}, err
	}

	intents, err := s.repo.ListIntents(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return SettlementSummary{}, err
	}

	var out SettlementSummary
	for _, i := range intents {
		out.TotalIntents++
		switch i.Status {
		case payment.StatusCompleted:
			out.Completed++
			out.SettledAmountMinor += i.AmountMinor
		case payment.StatusExpired:
			out.Expired++
		case payment.StatusNeedsReview:
			out.NeedsReview++
		case payment.StatusFailed:
			out.Failed++
		default:
			out.Open++
		}
	}
	if out.TotalIntents > 0 {
		out.CompletionRate = float64(out.Completed) / float64(out.TotalIntents)
	}
	return out, nil
}

func (s *Service) check(r TimeRange) error {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	return nil
}
