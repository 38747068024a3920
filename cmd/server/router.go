package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/database"
	"github.com/linnemanlabs/sift/internal/ticketapi"
)

// maxRequestBody bounds a whole API request; ticketapi caps each field lower.
const maxRequestBody = 64 << 10

const (
	healthPath = "/-/healthy"
	readyPath  = "/-/ready"
)

// apiDeps is everything the public listener's handler is built from.
type apiDeps struct {
	logger     log.Logger
	svc        ticketapi.TicketService
	adminToken string
	healthz    http.HandlerFunc
	readyz     http.HandlerFunc
	// instrument wraps the handler with prometheus http metrics
	instrument func(http.Handler) http.Handler
	clientIP   httpmw.ClientIPOptions
	dbQueries  prometheus.Observer
}

// apiHandler builds the chi router for the ticket API and wraps it in the
// middleware stack. Wrappers added later sit further out: they see the raw
// request first and the response last.
func apiHandler(d apiDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Compress(5, "application/json"))

	// rename logger field and span to the chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(dbStats(d.dbQueries))
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxRequestBody))

	r.Get(healthPath, d.healthz)
	r.Get(readyPath, d.readyz)

	ticketapi.New(d.logger, d.svc, d.adminToken).RegisterRoutes(r)

	var h http.Handler = r
	h = httpmw.WithLogger(d.logger)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != healthPath && r.URL.Path != readyPath
		}),
		// AnnotateHTTPRoute renames the span once the route is known
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)
	if d.instrument != nil {
		h = d.instrument(h)
	}
	h = httpmw.ClientIPWithOptions(d.clientIP)(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(d.logger, nil)(h)
	h = httpmw.SecurityHeaders(h)
	return h
}

// dbStats labels store queries with the request method and records how many
// queries the request issued.
func dbStats(queries prometheus.Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := database.WithHTTPMethod(req.Context(), req.Method)
			ctx = database.NewReqDBStatsContext(ctx)
			next.ServeHTTP(w, req.WithContext(ctx))
			if queries == nil {
				return
			}
			if stats, ok := database.ReqDBStatsFromContext(ctx); ok && stats.QueryCount > 0 {
				queries.Observe(float64(stats.QueryCount))
			}
		})
	}
}
