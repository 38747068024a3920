// Package database carries the query instrumentation shared by sift's SQL
// stores: per-request query stats, a process-wide query observer for
// Prometheus, structured query logs, and the PostgreSQL pool constructor
// that wires all of it into pgx.
package database

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
)

var (
	queryObserver atomic.Pointer[queryObserverHolder]
	slowQuery     atomic.Int64
)

type ctxKey string

const ctxKeyHTTPMethod ctxKey = "http.method"

type dbStatsKey struct{}

type queryObserverHolder struct{ QueryObserver }

// QueryObserver receives per-query metrics (wired by main for Prometheus).
type QueryObserver interface {
	ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, method, route, outcome string, dur time.Duration)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration) {
	f(ctx, method, route, outcome, dur)
}

// SetQueryObserver sets the global query observer (typically a Prometheus histogram).
func SetQueryObserver(o QueryObserver) {
	if o == nil {
		queryObserver.Store(nil)
		return
	}
	queryObserver.Store(&queryObserverHolder{QueryObserver: o})
}

func getQueryObserver() QueryObserver {
	h := queryObserver.Load()
	if h == nil {
		return nil
	}
	return h.QueryObserver
}

// SetSlowQueryThreshold sets the duration below which successful queries
// are not logged. 0 logs every query.
func SetSlowQueryThreshold(d time.Duration) {
	slowQuery.Store(int64(d))
}

// ReqDBStats accumulates per-request database query statistics.
type ReqDBStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *ReqDBStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

// NewReqDBStatsContext returns a new context with an empty ReqDBStats attached.
func NewReqDBStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbStatsKey{}, &ReqDBStats{})
}

// ReqDBStatsFromContext extracts the ReqDBStats from the context, if present.
func ReqDBStatsFromContext(ctx context.Context) (*ReqDBStats, bool) {
	s, ok := ctx.Value(dbStatsKey{}).(*ReqDBStats)
	return s, ok
}

// WithHTTPMethod stores the HTTP method in the context for query metrics labelling.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	if method == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyHTTPMethod, method)
}

func httpMethodFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyHTTPMethod).(string); ok {
		return v
	}
	return ""
}

func routePatternFromContext(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// Query describes one finished statement.
type Query struct {
	System    string // "postgresql", "sqlite"
	Statement string
	Args      []any
	Operation string
	Rows      int64 // -1 when unknown
	Caller    string
	Handler   string
	Duration  time.Duration
	Err       error
	// Extra log fields, e.g. PostgreSQL error codes.
	Fields []any
}

// Finish records q against the request stats, the query observer and the
// query log.
func Finish(ctx context.Context, q Query) {
	if s, ok := ReqDBStatsFromContext(ctx); ok {
		s.AddQuery(q.Duration, q.Err)
	}

	if obs := getQueryObserver(); obs != nil && q.Duration > 0 {
		method := httpMethodFromContext(ctx)
		if method == "" {
			method = "UNKNOWN"
		}
		route := routePatternFromContext(ctx)
		if route == "" {
			route = "unknown"
		}
		outcome := "ok"
		if q.Err != nil {
			outcome = "error"
		}
		obs.ObserveQuery(ctx, method, route, outcome, q.Duration)
	}

	if q.Err == nil && q.Duration < time.Duration(slowQuery.Load()) {
		return
	}

	fields := []any{
		"db.system", q.System,
		"db.statement", q.Statement,
		"db.args", q.Args,
		"db.duration", q.Duration.Seconds(),
	}
	if q.Operation != "" {
		fields = append(fields, "db.operation.name", q.Operation)
	}
	if q.Rows >= 0 {
		fields = append(fields, "db.rows", q.Rows)
	}
	if q.Caller != "" {
		fields = append(fields, "db.caller", q.Caller)
	}
	if q.Handler != "" {
		fields = append(fields, "db.handler", q.Handler)
	}
	fields = append(fields, q.Fields...)

	L := log.FromContext(ctx)
	if q.Err != nil {
		L.Error(ctx, q.Err, "db query failed", fields...)
	} else {
		L.Info(ctx, "db query", fields...)
	}
}

// operationOf returns the leading SQL keyword of stmt, upper-cased.
func operationOf(stmt string) string {
	f := strings.Fields(stmt)
	if len(f) == 0 {
		return ""
	}
	return strings.ToUpper(f[0])
}

// CallerAndHandler walks the stack to find:
//   - caller: the store function actually issuing the query
//   - handler: the next meaningful frame above that (service or HTTP handler)
func CallerAndHandler() (caller, handler string) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	gotCaller := false
	for {
		fr, more := frames.Next()
		fn := fr.Function

		switch {
		case fn == "":
		case isDriverFrame(fn):
		case !gotCaller:
			caller = shortenFuncName(fn)
			gotCaller = true
		case isStoreFrame(fn):
		default:
			return caller, shortenFuncName(fn)
		}
		if !more {
			break
		}
	}
	return caller, handler
}

func isDriverFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "database/sql.") ||
		strings.Contains(fn, "github.com/jackc/pgx/v5") ||
		strings.Contains(fn, "github.com/exaring/otelpgx") ||
		strings.Contains(fn, "modernc.org/sqlite") ||
		strings.Contains(fn, "github.com/linnemanlabs/sift/internal/database.")
}

// isStoreFrame reports store-level helpers, skipped when looking for the
// handler.
func isStoreFrame(fn string) bool {
	return strings.Contains(fn, "github.com/linnemanlabs/sift/internal/triage/pgstore.") ||
		strings.Contains(fn, "github.com/linnemanlabs/sift/internal/triage/sqlitestore.")
}

func shortenFuncName(fn string) string {
	// Trim package path.
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	// Trim package name, keep receiver + method.
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
