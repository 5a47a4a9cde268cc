package report

import (
	"context"
	"sync"

	"github.com/gurre/redshift-dwh/metrics"
)

// MemoryStore keeps reports in memory. Tests use it.
type MemoryStore struct {
	mu      sync.RWMutex
	report  metrics.Report
	saved   bool
	history []metrics.Report
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved report.
func (s *MemoryStore) Load(ctx context.Context) (metrics.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return metrics.Report{}, ErrNoReport
	}
	return s.report, nil
}

// Save stores r as the last report.
func (s *MemoryStore) Save(ctx context.Context, r metrics.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
	s.saved = true
	s.history = append(s.history, r)
	return nil
}

// History returns every saved report in order.
func (s *MemoryStore) History() []metrics.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]metrics.Report, len(s.history))
	copy(out, s.history)
	return out
}
