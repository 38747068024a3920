// Package ticketapi exposes ticket classification, submission and model
// administration over HTTP.
package ticketapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/trainer"
	"github.com/linnemanlabs/sift/internal/triage"
)

// TicketService defines the business operations ticketapi needs.
type TicketService interface {
	Classify(ctx context.Context, title, description string) (*triage.Classification, error)
	Submit(ctx context.Context, title, description string) (*triage.Ticket, error)
	Get(ctx context.Context, id string) (*triage.Ticket, bool, error)
	List(ctx context.Context, limit int) ([]*triage.Ticket, error)
	Retrain(ctx context.Context) (*trainer.Report, error)
	ModelInfo() priority.Info
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        TicketService
	adminToken string
}

// New creates a new API handler. Admin routes are only mounted when
// adminToken is non-empty.
func New(logger log.Logger, svc TicketService, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("ticket service is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		adminToken: adminToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", a.handleClassify)
		r.Post("/tickets", a.handleSubmit)
		r.Get("/tickets", a.handleList)
		r.Get("/tickets/{id}", a.handleGet)
		r.Get("/model", a.handleModelInfo)

		if a.adminToken != "" {
			r.With(authmw.BearerToken(a.adminToken)).Post("/model/train", a.handleTrain)
		}
	})
}

// maxFieldBytes caps each text field of a request.
const maxFieldBytes = 32 << 10

type ticketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// decodeTicket reads a ticketRequest, writing a 400 or 413 and returning
// false on failure.
func decodeTicket(w http.ResponseWriter, r *http.Request) (ticketRequest, bool) {
	var req ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return req, false
	}
	if len(req.Title) > maxFieldBytes || len(req.Description) > maxFieldBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "field too large")
		return req, false
	}
	return req, true
}

// classifyStatus maps a classification failure to a status and client
// message.
func classifyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, triage.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, priority.ErrNotTrained):
		return http.StatusServiceUnavailable, "model not trained"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}
