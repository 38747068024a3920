package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type pgxQueryKey struct{}

// pgxQuery is stashed in the context between TraceQueryStart and
// TraceQueryEnd.
type pgxQuery struct {
	sql     string
	args    []any
	start   time.Time
	caller  string
	handler string
}

// queryTracer wraps another pgx.QueryTracer (e.g. otelpgx) and feeds every
// query through Finish.
type queryTracer struct {
	inner pgx.QueryTracer
}

func wrapQueryTracer(inner pgx.QueryTracer) pgx.QueryTracer {
	return queryTracer{inner: inner}
}

func (t queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	// Computed from the app call stack, once per query.
	caller, handler := CallerAndHandler()

	// Let inner tracer (otelpgx) create its span first.
	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		attrs := make([]attribute.KeyValue, 0, 2)
		if caller != "" {
			attrs = append(attrs, attribute.String("db.caller", caller))
		}
		if handler != "" {
			attrs = append(attrs, attribute.String("db.handler", handler))
		}
		span.SetAttributes(attrs...)
	}

	return context.WithValue(ctx, pgxQueryKey{}, &pgxQuery{
		sql:     data.SQL,
		args:    data.Args,
		start:   time.Now(),
		caller:  caller,
		handler: handler,
	})
}

func (t queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	// Always call inner tracer first so spans are finished correctly.
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	q := Query{System: "postgresql", Rows: -1, Err: data.Err}
	if pq, ok := ctx.Value(pgxQueryKey{}).(*pgxQuery); ok {
		q.Statement = pq.sql
		q.Args = pq.args
		q.Caller = pq.caller
		q.Handler = pq.handler
		q.Duration = time.Since(pq.start)
	}

	if tag := strings.TrimSpace(data.CommandTag.String()); tag != "" {
		q.Operation = operationOf(tag)
		q.Rows = data.CommandTag.RowsAffected()
		q.Fields = append(q.Fields, "pg.command_tag", tag)
	} else {
		q.Operation = operationOf(q.Statement)
	}

	var pgErr *pgconn.PgError
	if errors.As(data.Err, &pgErr) {
		q.Fields = append(q.Fields,
			"db.error_code", pgErr.Code,
			"db.error_constraint", pgErr.ConstraintName,
		)
	}

	Finish(ctx, q)
}

// NewPool connects to PostgreSQL with otelpgx tracing and query logging
// installed, and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.ConnConfig.Tracer = wrapQueryTracer(otelpgx.NewTracer())

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
