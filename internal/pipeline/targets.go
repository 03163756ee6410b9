package pipeline

import (
	"sync"

	"github.com/raysh454/hunter/internal/model"
)

// TargetSource hands out configured targets round-robin, skipping those
// below the minimum priority.
type TargetSource struct {
	mu          sync.Mutex
	targets     []model.Target
	next        int
	minPriority int
}

func NewTargetSource(targets []model.Target, minPriority int) *TargetSource {
	return &TargetSource{targets: append([]model.Target(nil), targets...), minPriority: minPriority}
}

// Next returns the next eligible target. ok is false when no target meets
// the minimum priority.
func (s *TargetSource) Next() (model.Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range len(s.targets) {
		t := s.targets[s.next]
		s.next = (s.next + 1) % len(s.targets)
		if t.Priority >= s.minPriority {
			return t, true
		}
	}
	return model.Target{}, false
}

// Targets returns a copy of the configured targets.
func (s *TargetSource) Targets() []model.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Target(nil), s.targets...)
}
