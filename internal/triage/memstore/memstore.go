// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/linnemanlabs/sift/internal/triage"
)

// Store holds tickets in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*triage.Ticket // ticket ID -> ticket
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		tickets: make(map[string]*triage.Ticket),
	}
}

// Get retrieves a ticket by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Ticket, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, false, nil
	}
	cp := *t
	return &cp, true, nil
}

// Put stores a copy of the ticket, replacing any ticket with the same ID.
func (s *Store) Put(_ context.Context, t *triage.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

// List returns copies of up to limit tickets, newest first.
func (s *Store) List(_ context.Context, limit int) ([]*triage.Ticket, error) {
	s.mu.RLock()
	out := make([]*triage.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		cp := *t
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, triage.NewestFirst)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
