// Package slack announces newly stored tickets to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/triage"
)

const (
	maxDescriptionLen = 2000
	maxNoteLen        = 1000
	maxHeaderLen      = 150 // Slack rejects longer plain_text headers
	httpTimeout       = 10 * time.Second
)

// Notifier posts tickets to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts a ticket to the configured Slack webhook.
func (n *Notifier) Notify(ctx context.Context, t *triage.Ticket) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(t))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "ticket_id", t.ID, "priority", t.Priority.String())
	return nil
}

func buildMessage(t *triage.Ticket) map[string]any {
	blocks := []map[string]any{
		headerBlock(t),
		fieldsBlock(t),
		{"type": "divider"},
		descriptionBlock(t),
	}
	if t.Note != "" {
		blocks = append(blocks, noteBlock(t))
	}
	blocks = append(blocks, contextBlock(t))

	return map[string]any{
		// fallback for clients that do not render blocks
		"text":   fmt.Sprintf("%s ticket for %s: %s", t.Priority, t.Team, t.Title),
		"blocks": blocks,
	}
}

func headerBlock(t *triage.Ticket) map[string]any {
	text := fmt.Sprintf("%s %s ticket: %s", priorityEmoji(t.Priority), t.Priority, t.Title)
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, maxHeaderLen),
		},
	}
}

func fieldsBlock(t *triage.Ticket) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %s", t.Priority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Team:* %s", t.Team),
		},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func descriptionBlock(t *triage.Ticket) map[string]any {
	text := escape(truncate(t.Description, maxDescriptionLen))
	if text == "" {
		text = "_No description._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": "*Description*\n\n" + text,
		},
	}
}

func noteBlock(t *triage.Ticket) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": "*Suggested reply*\n\n" + escape(truncate(t.Note, maxNoteLen)),
		},
	}
}

func contextBlock(t *triage.Ticket) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sift • ticket %s • %s", t.ID, t.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}
	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func priorityEmoji(p label.Priority) string {
	switch p {
	case label.PriorityCritical:
		return "\U0001f534" // red circle
	case label.PriorityHigh:
		return "\U0001f7e0" // orange circle
	case label.PriorityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape neutralises the characters Slack treats as control sequences in
// mrkdwn.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
