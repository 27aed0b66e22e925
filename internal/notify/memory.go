package notify

import (
	"context"
	"sync"
)

// Memory records hints for test assertions.
type Memory struct {
	mu    sync.Mutex
	hints []Hint
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) PaymentChanged(ctx context.Context, h Hint) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints = append(m.hints, h)
	return nil
}

func (m *Memory) Hints() []Hint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Hint, len(m.hints))
	copy(out, m.hints)
	return out
}
