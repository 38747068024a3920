// Package claude drafts suggested first responses for tickets with the
// Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/advisor/claude")

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"

	maxTokens   = 512
	callTimeout = 60 * time.Second
	maxInputLen = 8000
)

const systemPrompt = `You are an IT service desk assistant. Given a support ticket, its predicted priority and the team it was routed to, write a short first response to the requester: acknowledge the problem, suggest one or two concrete things to check or try, and say which team will follow up. Plain text, at most five sentences, no greeting or signature.`

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("claude: no text content in response")

// Hooks receives per-call usage. Nil fields are skipped.
type Hooks struct {
	OnCall func(outcome string, inputTokens, outputTokens int64, duration float64)
}

// Advisor implements triage.Advisor on top of Claude.
type Advisor struct {
	client anthropic.Client
	model  string
	logger log.Logger
	hooks  Hooks
}

// New creates an advisor. opts are passed to the SDK client after the API
// key, so tests can point it at a local server.
func New(apiKey, model string, logger log.Logger, hooks Hooks, opts ...option.RequestOption) *Advisor {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.Nop()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Advisor{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
		hooks:  hooks,
	}
}

// Suggest returns a drafted reply for t.
func (a *Advisor) Suggest(ctx context.Context, t *triage.Ticket) (string, error) {
	ctx, span := tracer.Start(ctx, "claude.Suggest")
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.system", "anthropic"),
		attribute.String("gen_ai.request.model", a.model),
	)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(t))),
		},
	})
	dur := time.Since(start).Seconds()

	if err != nil {
		a.observe("error", 0, 0, dur)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("claude: messages.new: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", msg.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", msg.Usage.OutputTokens),
	)

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	note := strings.TrimSpace(b.String())
	if note == "" {
		a.observe("empty", msg.Usage.InputTokens, msg.Usage.OutputTokens, dur)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}

	a.observe("success", msg.Usage.InputTokens, msg.Usage.OutputTokens, dur)
	a.logger.Info(ctx, "suggested reply drafted",
		"ticket_id", t.ID,
		"model", a.model,
		"tokens_in", msg.Usage.InputTokens,
		"tokens_out", msg.Usage.OutputTokens,
		"duration", dur,
	)
	return note, nil
}

func (a *Advisor) observe(outcome string, in, out int64, dur float64) {
	if a.hooks.OnCall != nil {
		a.hooks.OnCall(outcome, in, out, dur)
	}
}

func userPrompt(t *triage.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Team: %s\n", t.Team)
	fmt.Fprintf(&b, "Title: %s\n\n", clip(t.Title, 500))
	b.WriteString(clip(t.Description, maxInputLen))
	return b.String()
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
