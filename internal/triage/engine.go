package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/routing"
	"github.com/linnemanlabs/sift/internal/textproc"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage")

// Predictor is the priority model the engine consults.
type Predictor interface {
	Predict(text string) (label.Priority, error)
}

// EngineHooks receives classification events. Nil fields are skipped.
type EngineHooks struct {
	OnClassify func(p label.Priority, team label.Team, duration float64)
	OnError    func(reason string)
}

// Engine classifies tickets. It holds no ticket state and does not touch
// the store.
type Engine struct {
	predictor Predictor
	logger    log.Logger
	hooks     EngineHooks
}

// NewEngine creates an engine around predictor.
func NewEngine(predictor Predictor, logger log.Logger, hooks EngineHooks) *Engine {
	if predictor == nil {
		panic(xerrors.New("predictor is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{predictor: predictor, logger: logger, hooks: hooks}
}

// Validate checks that both fields carry text.
func Validate(title, description string) error {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, " and "))
	}
	return nil
}

// Classify normalizes the ticket text, predicts its priority, and routes it
// to a team.
func (e *Engine) Classify(ctx context.Context, title, description string) (*Classification, error) {
	ctx, span := tracer.Start(ctx, "triage.Classify")
	defer span.End()

	if err := Validate(title, description); err != nil {
		e.fail("invalid_input")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	text := textproc.Combine(title, description)

	p, err := e.predictor.Predict(text)
	if err != nil {
		e.fail("predict")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error(ctx, err, "priority prediction failed")
		return nil, fmt.Errorf("predict priority: %w", err)
	}
	team := routing.Assign(text)
	dur := time.Since(start).Seconds()

	span.SetAttributes(
		attribute.String("sift.ticket.priority", p.String()),
		attribute.String("sift.ticket.team", string(team)),
		attribute.Int("sift.ticket.tokens", len(strings.Fields(text))),
	)
	if e.hooks.OnClassify != nil {
		e.hooks.OnClassify(p, team, dur)
	}

	return &Classification{Priority: p, Team: team, ProcessedText: text}, nil
}

func (e *Engine) fail(reason string) {
	if e.hooks.OnError != nil {
		e.hooks.OnError(reason)
	}
}
