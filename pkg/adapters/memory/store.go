// Package memory provides an in-process tracker store, useful for
// tests and single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/espalier-ai/espalier/pkg/domain"
	"github.com/espalier-ai/espalier/pkg/ports"
)

// Store keeps trackers in a map. Safe for concurrent use; trackers are
// copied on the way in and out so callers never share mutable state.
type Store struct {
	mu       sync.RWMutex
	trackers map[string]*domain.Tracker
}

var _ ports.TrackerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{trackers: make(map[string]*domain.Tracker)}
}

func (s *Store) Save(_ context.Context, senderID string, tracker *domain.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[senderID] = tracker.Copy()
	return nil
}

func (s *Store) Load(_ context.Context, senderID string) (*domain.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracker, ok := s.trackers[senderID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return tracker.Copy(), nil
}

func (s *Store) Delete(_ context.Context, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, senderID)
	return nil
}
