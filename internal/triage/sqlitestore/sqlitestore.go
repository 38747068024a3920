// Package sqlitestore provides a single-file SQLite implementation of
// triage.Store for deployments without PostgreSQL.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/linnemanlabs/sift/internal/database"
	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage/sqlitestore")

//go:embed schema.sql
var schema string

// Store persists tickets in a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path in WAL mode and
// applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

const ticketColumns = `id, title, description, priority, team, processed_text, note, created_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// observe reports a finished statement to the shared query instrumentation.
func observe(ctx context.Context, op, stmt string, start time.Time, rows int64, err error, args ...any) {
	caller, handler := database.CallerAndHandler()
	database.Finish(ctx, database.Query{
		System:    "sqlite",
		Statement: stmt,
		Args:      args,
		Operation: op,
		Rows:      rows,
		Caller:    caller,
		Handler:   handler,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// Get retrieves a ticket by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Ticket, bool, error) {
	ctx, span := startSpan(ctx, "sqlitestore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	start := time.Now()
	t, err := scanTicket(s.db.QueryRowContext(ctx, query, id))
	observe(ctx, "SELECT", query, start, -1, err, id)
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
	ctx, span := startSpan(ctx, "sqlitestore.Put", "UPSERT")
	defer span.End()

	query := `INSERT INTO tickets (` + ticketColumns + `)
	VALUES (?,?,?,?,?,?,?,?)
	ON CONFLICT (id) DO UPDATE SET
		title          = excluded.title,
		description    = excluded.description,
		priority       = excluded.priority,
		team           = excluded.team,
		processed_text = excluded.processed_text,
		note           = excluded.note`

	start := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Priority.String(), string(t.Team),
		t.ProcessedText, t.Note, t.CreatedAt.UTC().UnixNano(),
	)
	rows := int64(-1)
	if err == nil {
		if n, rerr := res.RowsAffected(); rerr == nil {
			rows = n
		}
	}
	observe(ctx, "INSERT", query, start, rows, err, t.ID)
	if err != nil {
		err = fmt.Errorf("upsert ticket: %w", err)
		fail(span, err)
		return err
	}
	return nil
}

// List returns up to limit tickets, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*triage.Ticket, error) {
	ctx, span := startSpan(ctx, "sqlitestore.List", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.Int("sift.list.limit", limit))

	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC, id DESC LIMIT ?`
	start := time.Now()
	out, err := s.list(ctx, query, limit)
	observe(ctx, "SELECT", query, start, int64(len(out)), err, limit)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return out, nil
}

func (s *Store) list(ctx context.Context, query string, limit int) ([]*triage.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []*triage.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTicket scans a single row into a Ticket. Returns (nil, nil) when no
// row is found.
func scanTicket(row scanner) (*triage.Ticket, error) {
	var (
		t        triage.Ticket
		priority string
		team     string
		created  int64
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &team, &t.ProcessedText, &t.Note, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}
