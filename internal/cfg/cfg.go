// Package cfg holds sift's application-level configuration. Library
// configs (logging, HTTP server, profiling, tracing) register their own
// flags alongside it.
package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/trainer"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SQLitePath            string
	SlowQueryMillis       int
	ModelPath             string
	DatasetPath           string
	RetrainSchedule       string
	APIToken              string
	SlackWebhookURL       string
	NotifyPriority        string
	ClaudeAPIKey          string
	ClaudeModel           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = SQLite or in-memory store)")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "", "SQLite database file (used when database-url is empty; empty = in-memory store)")
	fs.IntVar(&c.SlowQueryMillis, "db-slow-query-ms", 0, "only log successful queries slower than this many milliseconds (0 = log all)")
	fs.StringVar(&c.ModelPath, "model-path", "data/priority_model.bin", "file the priority model is loaded from and saved to")
	fs.StringVar(&c.DatasetPath, "dataset-path", "", "labeled CSV used for training (empty = built-in sample)")
	fs.StringVar(&c.RetrainSchedule, "retrain-schedule", "", "cron expression for scheduled full retrains (empty = disabled)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for admin API routes (empty = admin routes disabled)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for ticket notifications")
	fs.StringVar(&c.NotifyPriority, "notify-priority", label.PriorityHigh.String(), "lowest priority that triggers a notification (Low|Medium|High|Critical)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "Anthropic API key for suggested replies (empty = disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5-20250929", "Claude model used for suggested replies")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Exactly one persistent store at most
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		errs = append(errs, errors.New("DATABASE_URL and SQLITE_PATH are mutually exclusive"))
	}
	if c.SlowQueryMillis < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMillis))
	}

	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}

	if c.RetrainSchedule != "" {
		if _, err := trainer.ParseSchedule(c.RetrainSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid RETRAIN_SCHEDULE: %w", err))
		}
	}

	if _, err := label.ParsePriority(c.NotifyPriority); err != nil {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_PRIORITY %q (must be Low|Medium|High|Critical)", c.NotifyPriority))
	}

	// Claude model is required once the advisor is enabled
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NotifyAt returns the parsed notification threshold. Call after Validate.
func (c *Config) NotifyAt() label.Priority {
	p, err := label.ParsePriority(c.NotifyPriority)
	if err != nil {
		return label.PriorityHigh
	}
	return p
}
