package trainer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ErrScheduleNeverFires is returned by ParseSchedule for an expression with
// no future activation, such as February 30th.
var ErrScheduleNeverFires = errors.New("schedule never fires")

// ParseSchedule validates a standard 5-field cron expression or a
// descriptor such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := scheduleParser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	// cron returns the zero time when it finds no match
	if s.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, ErrScheduleNeverFires)
	}
	return s, nil
}

// Scheduler retrains on a cron schedule. Every run is a full refit.
type Scheduler struct {
	trainer  *Trainer
	schedule cron.Schedule
	spec     string
	now      func() time.Time
}

// NewScheduler parses spec and returns a Scheduler for t.
func NewScheduler(t *Trainer, spec string) (*Scheduler, error) {
	s, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{trainer: t, schedule: s, spec: spec, now: time.Now}, nil
}

// Start runs the schedule in a goroutine until ctx is done or the returned
// stop function is called. stop waits for an in-flight run to finish or
// for its own ctx to expire.
func (s *Scheduler) Start(ctx context.Context) (stop func(context.Context) error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			now := s.now()
			next := s.schedule.Next(now)
			if next.IsZero() {
				s.trainer.logger.Warn(ctx, "retrain schedule has no next activation, stopping", "schedule", s.spec)
				return
			}
			s.trainer.logger.Info(ctx, "next scheduled retrain", "schedule", s.spec, "at", next)

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			// errors are logged and counted by Run
			_, _ = s.trainer.Run(ctx)
		}
	}()

	return func(sctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	}
}
