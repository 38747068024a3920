// Package storetest holds a behavioural suite shared by every triage.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
)

// Ticket returns a fully populated ticket with the given ID and creation time.
func Ticket(id string, created time.Time) *triage.Ticket {
	return &triage.Ticket{
		ID:            id,
		Title:         "VPN down",
		Description:   "Cannot reach the office network over VPN.",
		Priority:      label.PriorityHigh,
		Team:          label.TeamNetwork,
		ProcessedText: "vpn vpn reach office network vpn",
		CreatedAt:     created.Truncate(time.Microsecond).UTC(),
	}
}

// Run exercises open against the triage.Store contract. open must return an
// empty store; IDs are prefixed with prefix so suites sharing a database do
// not collide.
func Run(t *testing.T, prefix string, open func(t *testing.T) triage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		s := open(t)
		want := Ticket(prefix+"put-get", time.Now())
		want.Note = "Check the VPN client version."
		if err := s.Put(ctx, want); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, ok, err := s.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok {
			t.Fatal("Get returned ok=false, want true")
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
		got.CreatedAt = want.CreatedAt
		if *got != *want {
			t.Errorf("Get = %+v, want %+v", got, want)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		got, ok, err := s.Get(ctx, prefix+"nonexistent")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok || got != nil {
			t.Fatalf("Get = %+v, %v; want nil, false", got, ok)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := open(t)
		tk := Ticket(prefix+"overwrite", time.Now())
		if err := s.Put(ctx, tk); err != nil {
			t.Fatalf("Put: %v", err)
		}
		tk.Note = "Restart the router."
		tk.Priority = label.PriorityCritical
		if err := s.Put(ctx, tk); err != nil {
			t.Fatalf("Put (update): %v", err)
		}

		got, _, err := s.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Note != tk.Note || got.Priority != label.PriorityCritical {
			t.Errorf("after update got note=%q priority=%v", got.Note, got.Priority)
		}
	})

	t.Run("PutStoresCopy", func(t *testing.T) {
		s := open(t)
		tk := Ticket(prefix+"copy", time.Now())
		if err := s.Put(ctx, tk); err != nil {
			t.Fatalf("Put: %v", err)
		}
		tk.Title = "mutated"

		got, _, _ := s.Get(ctx, tk.ID)
		if got.Title == "mutated" {
			t.Error("store kept a reference to the caller's ticket")
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := open(t)
		base := time.Now().Add(-time.Hour)
		for i := range 5 {
			tk := Ticket(fmt.Sprintf("%slist-%d", prefix, i), base.Add(time.Duration(i)*time.Minute))
			if err := s.Put(ctx, tk); err != nil {
				t.Fatalf("Put %d: %v", i, err)
			}
		}

		got, err := s.List(ctx, 3)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("List len = %d, want 3", len(got))
		}
		for i, want := range []string{"list-4", "list-3", "list-2"} {
			if got[i].ID != prefix+want {
				t.Errorf("List[%d] = %s, want %s", i, got[i].ID, prefix+want)
			}
		}
	})

	t.Run("ListTieBreaksOnID", func(t *testing.T) {
		s := open(t)
		at := time.Now()
		for _, id := range []string{"tie-a", "tie-c", "tie-b"} {
			if err := s.Put(ctx, Ticket(prefix+id, at)); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := s.List(ctx, 3)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 3 || got[0].ID != prefix+"tie-c" || got[2].ID != prefix+"tie-a" {
			ids := make([]string, len(got))
			for i, tk := range got {
				ids[i] = tk.ID
			}
			t.Errorf("List order = %v, want tie-c, tie-b, tie-a", ids)
		}
	})
}
