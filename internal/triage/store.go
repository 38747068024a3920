package triage

import (
	"context"
	"strings"
)

// Store is the persistence interface for tickets.
type Store interface {
	Get(ctx context.Context, id string) (*Ticket, bool, error)
	Put(ctx context.Context, t *Ticket) error
	// List returns up to limit tickets, newest first.
	List(ctx context.Context, limit int) ([]*Ticket, error)
}

// NewestFirst orders tickets by CreatedAt descending, breaking ties by ID
// descending.
func NewestFirst(a, b *Ticket) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}
