package ticketapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
)

type classifyResponse struct {
	Title    string         `json:"title"`
	Priority label.Priority `json:"priority"`
	Team     label.Team     `json:"team"`
}

func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTicket(w, r)
	if !ok {
		return
	}

	c, err := a.svc.Classify(r.Context(), req.Title, req.Description)
	if err != nil {
		status, msg := classifyStatus(err)
		if status == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "classification failed")
		}
		writeError(w, status, msg)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("sift.ticket.priority", c.Priority.String()),
		attribute.String("sift.ticket.team", string(c.Team)),
	)
	writeJSON(w, http.StatusOK, classifyResponse{Title: req.Title, Priority: c.Priority, Team: c.Team})
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTicket(w, r)
	if !ok {
		return
	}

	t, err := a.svc.Submit(r.Context(), req.Title, req.Description)
	if err != nil {
		status, msg := classifyStatus(err)
		if status == http.StatusInternalServerError {
			a.logger.Error(r.Context(), err, "ticket submission failed")
		}
		writeError(w, status, msg)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("sift.ticket.id", t.ID))
	w.Header().Set("Location", "/api/v1/tickets/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

type listResponse struct {
	Tickets []*triage.Ticket `json:"tickets"`
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	tickets, err := a.svc.List(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list tickets")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tickets == nil {
		tickets = []*triage.Ticket{}
	}
	writeJSON(w, http.StatusOK, listResponse{Tickets: tickets})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.ticket.id", id))

	t, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get ticket", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("sift.ticket.priority", t.Priority.String()))
	writeJSON(w, http.StatusOK, t)
}
