package execstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"sigil/internal/domain"
)

// Stats are counters surfaced on the stats endpoint.
type Stats struct {
	Recorded int64          `json:"recorded"`
	Evicted  int64          `json:"evicted"`
	Held     int            `json:"held"`
	PerTool  map[string]int `json:"per_tool,omitempty"`
}

// MemoryStore retains the most recent N signed executions, newest first.
// Readers get a snapshot copy, so a matching pass never observes eviction
// or a half-written record.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	recent   []domain.SignedExecution // index 0 is newest

	recorded int64
	evicted  int64
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Record(_ context.Context, exec domain.SignedExecution) error {
	if exec.ToolID == "" {
		return errors.New("tool id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append([]domain.SignedExecution{exec}, s.recent...)
	if len(s.recent) > s.capacity {
		s.evicted += int64(len(s.recent) - s.capacity)
		s.recent = s.recent[:s.capacity]
	}
	s.recorded++
	return nil
}

// Recent returns executions newer than now-within, most recent first. An
// empty toolID matches every tool.
func (s *MemoryStore) Recent(_ context.Context, toolID string, within time.Duration) ([]domain.SignedExecution, error) {
	cutoff := time.Now().Add(-within)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignedExecution, 0, len(s.recent))
	for _, exec := range s.recent {
		if within > 0 && exec.SignedAt.Before(cutoff) {
			continue
		}
		if toolID != "" && exec.ToolID != toolID {
			continue
		}
		out = append(out, exec)
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perTool := make(map[string]int)
	for _, exec := range s.recent {
		perTool[exec.ToolID]++
	}
	return Stats{
		Recorded: s.recorded,
		Evicted:  s.evicted,
		Held:     len(s.recent),
		PerTool:  perTool,
	}, nil
}
