package triage

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/trainer"
)

// List limits.
const (
	DefaultListLimit = 10
	MaxListLimit     = 500
)

// ErrRetrainUnavailable is returned by Retrain when no trainer is wired.
var ErrRetrainUnavailable = errors.New("retraining is not configured")

// Notifier announces newly stored tickets.
type Notifier interface {
	Notify(ctx context.Context, t *Ticket) error
}

// Advisor drafts a suggested first response for a ticket.
type Advisor interface {
	Suggest(ctx context.Context, t *Ticket) (string, error)
}

// Retrainer refits the priority model.
type Retrainer interface {
	Run(ctx context.Context) (*trainer.Report, error)
}

// ModelInspector describes the loaded model.
type ModelInspector interface {
	Info() priority.Info
}

// Deps are the optional collaborators of a Service. Nil fields disable the
// matching feature.
type Deps struct {
	Notifier Notifier
	// NotifyAt is the lowest priority that triggers a notification.
	NotifyAt  label.Priority
	Advisor   Advisor
	Retrainer Retrainer
	Model     ModelInspector
}

// Service is the business boundary for ticket operations.
type Service struct {
	store   Store
	engine  *Engine
	logger  log.Logger
	metrics *Metrics
	deps    Deps
}

// NewService creates a new ticket service. metrics may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, deps Deps) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:   store,
		engine:  engine,
		logger:  logger,
		metrics: metrics,
		deps:    deps,
	}
}

// Classify returns the classification of a ticket without storing it.
func (s *Service) Classify(ctx context.Context, title, description string) (*Classification, error) {
	return s.engine.Classify(ctx, title, description)
}

// Submit classifies a ticket, stores it, and kicks off follow-up work
// (suggested reply, notification) in the background.
func (s *Service) Submit(ctx context.Context, title, description string) (*Ticket, error) {
	c, err := s.engine.Classify(ctx, title, description)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			s.countSubmit("invalid")
		} else {
			s.countSubmit("error")
		}
		return nil, err
	}

	t := &Ticket{
		ID:            ulid.Make().String(),
		Title:         title,
		Description:   description,
		Priority:      c.Priority,
		Team:          c.Team,
		ProcessedText: c.ProcessedText,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Put(ctx, t); err != nil {
		s.countSubmit("error")
		return nil, err
	}
	s.countSubmit("stored")

	s.logger.Info(ctx, "ticket stored",
		"ticket_id", t.ID,
		"priority", t.Priority.String(),
		"team", string(t.Team),
	)

	if s.deps.Advisor != nil || s.wantsNotify(t) {
		// pass a copy so the caller's ticket is never mutated
		cp := *t
		go s.followUp(context.WithoutCancel(ctx), cp)
	}

	return t, nil
}

// Get retrieves a ticket by ID.
func (s *Service) Get(ctx context.Context, id string) (*Ticket, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns the most recent tickets. limit is clamped to
// 1..MaxListLimit, with DefaultListLimit used for values below 1.
func (s *Service) List(ctx context.Context, limit int) ([]*Ticket, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.store.List(ctx, limit)
}

// Retrain refits the priority model from its configured dataset.
func (s *Service) Retrain(ctx context.Context) (*trainer.Report, error) {
	if s.deps.Retrainer == nil {
		return nil, ErrRetrainUnavailable
	}
	return s.deps.Retrainer.Run(ctx)
}

// ModelInfo describes the loaded priority model.
func (s *Service) ModelInfo() priority.Info {
	if s.deps.Model == nil {
		return priority.Info{}
	}
	return s.deps.Model.Info()
}

func (s *Service) wantsNotify(t *Ticket) bool {
	return s.deps.Notifier != nil && t.Priority.AtLeast(s.deps.NotifyAt)
}

func (s *Service) followUp(ctx context.Context, t Ticket) {
	L := s.logger.With("ticket_id", t.ID, "priority", t.Priority.String(), "team", string(t.Team))

	if s.deps.Advisor != nil {
		note, err := s.deps.Advisor.Suggest(ctx, &t)
		switch {
		case err != nil:
			L.Error(ctx, err, "failed to draft suggested reply")
		case note != "":
			t.Note = note
			if err := s.store.Put(ctx, &t); err != nil {
				L.Error(ctx, err, "failed to persist suggested reply")
			}
		}
	}

	if s.wantsNotify(&t) {
		outcome := "sent"
		if err := s.deps.Notifier.Notify(ctx, &t); err != nil {
			outcome = "error"
			L.Error(ctx, err, "failed to send ticket notification")
		}
		if s.metrics != nil {
			s.metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
		}
	}
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
