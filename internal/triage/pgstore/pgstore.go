// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists tickets in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const ticketColumns = `id, title, description, priority, team, processed_text, note, created_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Get retrieves a ticket by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Ticket, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	if t == nil {
		return nil, false, nil
	}
	return t, true, nil
}

// Put inserts or updates a ticket.
func (s *Store) Put(ctx context.Context, t *triage.Ticket) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	query := `INSERT INTO tickets (` + ticketColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		title          = EXCLUDED.title,
		description    = EXCLUDED.description,
		priority       = EXCLUDED.priority,
		team           = EXCLUDED.team,
		processed_text = EXCLUDED.processed_text,
		note           = EXCLUDED.note`

	_, err = tx.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Priority.String(), string(t.Team),
		t.ProcessedText, t.Note, t.CreatedAt,
	)
	if err != nil {
		err = fmt.Errorf("upsert ticket: %w", err)
		fail(span, err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		fail(span, err)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns up to limit tickets, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*triage.Ticket, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.Int("sift.list.limit", limit))

	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		err = fmt.Errorf("query tickets: %w", err)
		fail(span, err)
		return nil, err
	}
	defer rows.Close()

	var out []*triage.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		err = fmt.Errorf("iterate tickets: %w", err)
		fail(span, err)
		return nil, err
	}
	return out, nil
}

// scanTicket scans a single row into a Ticket. Returns (nil, nil) when no
// row is found.
func scanTicket(row pgx.Row) (*triage.Ticket, error) {
	var (
		t        triage.Ticket
		priority string
		team     string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &team, &t.ProcessedText, &t.Note, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if t.Priority, err = label.ParsePriority(priority); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	if t.Team, err = label.ParseTeam(team); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
