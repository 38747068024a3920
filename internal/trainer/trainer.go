// Package trainer drives a full fit of the priority classifier: load the
// labeled dataset, combine and normalize each ticket, train, and persist the
// model blob.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/dataset"
	"github.com/linnemanlabs/sift/internal/label"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/textproc"
)

// SourceSample names the built-in dataset in reports.
const SourceSample = "builtin-sample"

// Hooks receives training outcomes. Nil fields are skipped.
type Hooks struct {
	OnTrain func(outcome string, duration float64, vocabularySize int)
}

// Options configures a Trainer.
type Options struct {
	// DatasetPath is the CSV to train from. Empty uses the built-in sample.
	DatasetPath string
	// ModelPath is where the fitted model is saved. Empty skips saving.
	ModelPath string
	Logger    log.Logger
	Hooks     Hooks
}

// Report summarises one training run.
type Report struct {
	Source         string         `json:"source"`
	Examples       int            `json:"examples"`
	ClassCounts    map[string]int `json:"class_counts"`
	VocabularySize int            `json:"vocabulary_size"`
	ModelPath      string         `json:"model_path,omitempty"`
	Duration       float64        `json:"duration_seconds"`
}

// Trainer fits a classifier from a dataset.
type Trainer struct {
	cls    *priority.Classifier
	opts   Options
	logger log.Logger
}

// New creates a Trainer for cls.
func New(cls *priority.Classifier, opts Options) *Trainer {
	if cls == nil {
		panic(xerrors.New("classifier is required"))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Trainer{cls: cls, opts: opts, logger: logger}
}

// Run performs a full refit and saves the result when a model path is set.
// A save failure is returned after the in-memory model has already been
// replaced.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep, err := t.run(ctx)
	dur := time.Since(start).Seconds()

	if rep != nil {
		rep.Duration = dur
	}

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, priority.ErrModelIO):
		outcome = "save_error"
	default:
		outcome = "error"
	}
	if t.opts.Hooks.OnTrain != nil {
		vocab := 0
		if rep != nil {
			vocab = rep.VocabularySize
		}
		t.opts.Hooks.OnTrain(outcome, dur, vocab)
	}

	if err != nil {
		t.logger.Error(ctx, err, "model training failed", "outcome", outcome, "duration", dur)
		return rep, err
	}
	t.logger.Info(ctx, "model trained",
		"source", rep.Source,
		"examples", rep.Examples,
		"vocabulary_size", rep.VocabularySize,
		"model_path", rep.ModelPath,
		"duration", dur,
	)
	return rep, nil
}

func (t *Trainer) run(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	examples, source, err := t.examples()
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(examples))
	labels := make([]label.Priority, len(examples))
	counts := make(map[string]int, label.NumPriorities)
	for i, e := range examples {
		texts[i] = textproc.Combine(e.Title, e.Description)
		labels[i] = e.Priority
		counts[e.Priority.String()]++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.cls.Train(texts, labels); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	rep := &Report{
		Source:         source,
		Examples:       len(examples),
		ClassCounts:    counts,
		VocabularySize: t.cls.Info().VocabularySize,
	}
	if t.opts.ModelPath != "" {
		if err := t.cls.Save(t.opts.ModelPath); err != nil {
			return rep, fmt.Errorf("save: %w", err)
		}
		rep.ModelPath = t.opts.ModelPath
	}
	return rep, nil
}

func (t *Trainer) examples() ([]dataset.Example, string, error) {
	if t.opts.DatasetPath == "" {
		return dataset.Sample(), SourceSample, nil
	}
	ex, err := dataset.Load(t.opts.DatasetPath)
	if err != nil {
		return nil, "", fmt.Errorf("load dataset: %w", err)
	}
	return ex, t.opts.DatasetPath, nil
}

// LoadOrTrain restores the model from ModelPath and falls back to Run when
// the file is missing or corrupt. Other load errors are returned as is.
func (t *Trainer) LoadOrTrain(ctx context.Context) (trained bool, err error) {
	if t.opts.ModelPath != "" {
		err := t.cls.Load(t.opts.ModelPath)
		switch {
		case err == nil:
			info := t.cls.Info()
			t.logger.Info(ctx, "model loaded",
				"model_path", t.opts.ModelPath,
				"vocabulary_size", info.VocabularySize,
				"examples", info.Examples,
			)
			return false, nil
		case errors.Is(err, priority.ErrModelNotFound):
			t.logger.Info(ctx, "no saved model, training", "model_path", t.opts.ModelPath)
		case errors.Is(err, priority.ErrCorruptModel):
			t.logger.Warn(ctx, "saved model unusable, retraining", "model_path", t.opts.ModelPath, "error", err)
		default:
			return false, err
		}
	}

	if _, err := t.Run(ctx); err != nil {
		return false, err
	}
	return true, nil
}
