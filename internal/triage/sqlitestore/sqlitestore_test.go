package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
	"github.com/linnemanlabs/sift/internal/triage/storetest"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "tickets.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	t.Parallel()

	storetest.Run(t, "", func(t *testing.T) triage.Store { return openStore(t) })
}

func TestNew_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "tickets.db")
	s, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path = %q, want %q", s.Path(), path)
	}
}

func TestReopenKeepsTickets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.db")

	s, err := New(ctx, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tk := storetest.Ticket("keep-1", time.Now())
	if err := s.Put(ctx, tk); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = New(ctx, path)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer s.Close()

	got, ok, err := s.Get(ctx, tk.ID)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if !got.CreatedAt.Equal(tk.CreatedAt) || got.Priority != label.PriorityHigh {
		t.Errorf("reopened ticket = %+v", got)
	}
}

func TestGet_RejectsUnknownPriority(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (`+ticketColumns+`) VALUES ('bad','t','d','Urgent','network','','',0)`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, _, err := s.Get(ctx, "bad"); !errors.Is(err, label.ErrUnknownLabel) {
		t.Fatalf("Get err = %v, want ErrUnknownLabel", err)
	}
}

func TestClosedStoreErrors(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	_ = s.Close()
	if err := s.Put(context.Background(), storetest.Ticket("x", time.Now())); err == nil {
		t.Error("Put on closed store succeeded")
	}
	if _, err := s.List(context.Background(), 1); err == nil {
		t.Error("List on closed store succeeded")
	}
}
