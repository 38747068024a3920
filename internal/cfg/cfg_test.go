package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"

	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/trainer"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ModelPath:             "data/priority_model.bin",
		NotifyPriority:        "High",
		ClaudeModel:           "claude-sonnet-4-5-20250929",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ModelPath != "data/priority_model.bin" {
		t.Errorf("ModelPath = %q", c.ModelPath)
	}
	if c.NotifyPriority != "High" {
		t.Errorf("NotifyPriority = %q, want High", c.NotifyPriority)
	}
	if c.DatabaseURL != "" || c.SQLitePath != "" || c.RetrainSchedule != "" || c.APIToken != "" {
		t.Errorf("optional features enabled by default: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-sqlite-path", "/var/lib/sift/tickets.db",
		"-model-path", "/var/lib/sift/model.bin",
		"-dataset-path", "/etc/sift/tickets.csv",
		"-retrain-schedule", "@daily",
		"-api-token", "admin",
		"-notify-priority", "Critical",
		"-claude-api-key", "sk-override",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 || c.ShutdownBudgetSeconds != 120 || c.APIPort != 9090 {
		t.Errorf("budgets/port = %d/%d/%d", c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort)
	}
	if c.SQLitePath != "/var/lib/sift/tickets.db" {
		t.Errorf("SQLitePath = %q", c.SQLitePath)
	}
	if c.ModelPath != "/var/lib/sift/model.bin" || c.DatasetPath != "/etc/sift/tickets.csv" {
		t.Errorf("ModelPath/DatasetPath = %q/%q", c.ModelPath, c.DatasetPath)
	}
	if c.RetrainSchedule != "@daily" || c.APIToken != "admin" || c.ClaudeAPIKey != "sk-override" {
		t.Errorf("schedule/token/key = %q/%q/%q", c.RetrainSchedule, c.APIToken, c.ClaudeAPIKey)
	}
	if c.NotifyAt() != label.PriorityCritical {
		t.Errorf("NotifyAt = %v, want Critical", c.NotifyAt())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("overrides do not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(mut func(*Config)) Config {
		c := validBase()
		mut(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{name: "defaults are valid", cfg: validBase()},
		{name: "minimum valid values", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1 })},
		{name: "maximum valid values", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535 })},
		{name: "drain zero", cfg: with(func(c *Config) { c.DrainSeconds = 0 }), wantErr: true, errSubstr: []string{"DRAIN_SECONDS"}},
		{name: "drain above max", cfg: with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }), wantErr: true, errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS 302"}},
		{name: "budget equals drain", cfg: with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }), wantErr: true, errSubstr: []string{"must be greater than DRAIN_SECONDS"}},
		{name: "port zero", cfg: with(func(c *Config) { c.APIPort = 0 }), wantErr: true, errSubstr: []string{"HTTP_PORT"}},
		{name: "port above max", cfg: with(func(c *Config) { c.APIPort = 65536 }), wantErr: true, errSubstr: []string{"HTTP_PORT"}},
		{name: "postgres only", cfg: with(func(c *Config) { c.DatabaseURL = "postgres://localhost/sift" })},
		{name: "sqlite only", cfg: with(func(c *Config) { c.SQLitePath = "tickets.db" })},
		{
			name:      "both stores",
			cfg:       with(func(c *Config) { c.DatabaseURL, c.SQLitePath = "postgres://localhost/sift", "tickets.db" }),
			wantErr:   true,
			errSubstr: []string{"mutually exclusive"},
		},
		{name: "negative slow query", cfg: with(func(c *Config) { c.SlowQueryMillis = -1 }), wantErr: true, errSubstr: []string{"DB_SLOW_QUERY_MS"}},
		{name: "missing model path", cfg: with(func(c *Config) { c.ModelPath = "" }), wantErr: true, errSubstr: []string{"MODEL_PATH"}},
		{name: "valid schedule", cfg: with(func(c *Config) { c.RetrainSchedule = "30 2 * * 0" })},
		{name: "invalid schedule", cfg: with(func(c *Config) { c.RetrainSchedule = "nightly" }), wantErr: true, errSubstr: []string{"RETRAIN_SCHEDULE"}},
		{name: "schedule never fires", cfg: with(func(c *Config) { c.RetrainSchedule = "0 0 30 2 *" }), wantErr: true, errSubstr: []string{"RETRAIN_SCHEDULE", "never fires"}},
		{name: "lowercase priority", cfg: with(func(c *Config) { c.NotifyPriority = "high" }), wantErr: true, errSubstr: []string{"NOTIFY_PRIORITY"}},
		{name: "empty priority", cfg: with(func(c *Config) { c.NotifyPriority = "" }), wantErr: true, errSubstr: []string{"NOTIFY_PRIORITY"}},
		{name: "advisor without model", cfg: with(func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "k", "" }), wantErr: true, errSubstr: []string{"CLAUDE_MODEL"}},
		{name: "no advisor no model", cfg: with(func(c *Config) { c.ClaudeModel = "" })},
		{
			name:      "multiple errors joined",
			cfg:       Config{DrainSeconds: 0, ShutdownBudgetSeconds: 0, APIPort: 0},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "MODEL_PATH", "NOTIFY_PRIORITY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, sub := range tt.errSubstr {
				if !strings.Contains(err.Error(), sub) {
					t.Errorf("error %q does not contain %q", err, sub)
				}
			}
		})
	}
}

func TestNotifyAt(t *testing.T) {
	t.Parallel()

	for _, p := range label.Priorities() {
		c := Config{NotifyPriority: p.String()}
		if got := c.NotifyAt(); got != p {
			t.Errorf("NotifyAt(%q) = %v", p.String(), got)
		}
	}
	if got := (&Config{NotifyPriority: "bogus"}).NotifyAt(); got != label.PriorityHigh {
		t.Errorf("NotifyAt(bogus) = %v, want High fallback", got)
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port     int
		dbURL, sqlite, priority string
		schedule                string
	}{
		{60, 90, 8080, "", "", "High", ""},
		{1, 2, 1, "postgres://x", "", "Low", "@hourly"},
		{299, 300, 65535, "", "t.db", "Critical", "0 3 * * *"},
		{0, 0, 0, "", "", "", ""},
		{-1, -1, -1, "a", "b", "high", "bogus"},
		{300, 300, 65535, "", "", "Medium", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, "", "", "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.dbURL, s.sqlite, s.priority, s.schedule)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, dbURL, sqlite, priority, schedule string) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.DatabaseURL = dbURL
		c.SQLitePath = sqlite
		c.NotifyPriority = priority
		c.RetrainSchedule = schedule
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		storeOK := dbURL == "" || sqlite == ""
		_, perr := label.ParsePriority(priority)
		scheduleOK := true
		if schedule != "" {
			_, serr := trainer.ParseSchedule(schedule)
			scheduleOK = serr == nil
		}

		allValid := drainOK && budgetOK && portOK && crossOK && storeOK && perr == nil && scheduleOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
