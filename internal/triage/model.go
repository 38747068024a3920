package triage

import (
	"errors"
	"time"

	"github.com/linnemanlabs/sift/internal/label"
)

// ErrInvalidInput is returned when a ticket is missing its title or
// description.
var ErrInvalidInput = errors.New("invalid input")

// Classification is the outcome of running a ticket through the engine.
type Classification struct {
	Priority      label.Priority `json:"priority"`
	Team          label.Team     `json:"team"`
	ProcessedText string         `json:"processed_text"`
}

// Ticket is a submitted and classified support ticket.
type Ticket struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      label.Priority `json:"priority"`
	Team          label.Team     `json:"team"`
	ProcessedText string         `json:"processed_text"`
	// Note is a suggested first response, filled in asynchronously when an
	// advisor is configured.
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
