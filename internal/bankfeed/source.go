package bankfeed

import (
	"context"
	"sync"

	"renthub-platform/internal/settlement"
)

// Source is one bank feed adapter. Implementations page through the bank's
// transaction history; the cursor is opaque and adapter-defined (a bank
// transaction id, a timestamp, an API token).
type Source interface {
	// FetchNew returns lines posted after the cursor plus the cursor for
	// the next call. An empty batch with the same cursor is a valid
	// "nothing new" answer.
	FetchNew(ctx context.Context, cursor string) ([]settlement.FeedLine, string, error)
}

// MemorySource is a Source fed by tests and local development. Push lines
// in with Add; each FetchNew drains everything added since the cursor.
type MemorySource struct {
	mu    sync.Mutex
	lines []settlement.FeedLine
	err   error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (s *MemorySource) Add(lines ...settlement.FeedLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
}

// FailWith makes every FetchNew return err until reset with FailWith(nil).
func (s *MemorySource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySource) FetchNew(ctx context.Context, cursor string) ([]settlement.FeedLine, string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, cursor, s.err
	}

	start := 0
	if cursor != "" {
		for i, l := range s.lines {
			if l.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(s.lines) {
		return nil, cursor, nil
	}

	batch := append([]settlement.FeedLine(nil), s.lines[start:]...)
	return batch, batch[len(batch)-1].ID, nil
}
