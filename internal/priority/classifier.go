// Package priority implements the ticket priority classifier: a TF-IDF
// feature extractor feeding a multinomial logistic regression whose classes
// are the four label.Priority values.
//
// A Classifier starts untrained. Train fits a new model from scratch and
// Load restores one saved with Save; both replace the current model in a
// single swap, so Predict can be called from any number of goroutines while
// a refit is running.
package priority

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/linnemanlabs/sift/internal/label"
)

var (
	// ErrNotTrained is returned by Predict and Save before a model exists.
	ErrNotTrained = errors.New("priority classifier is not trained")

	// ErrInvalidTrainingSet is returned by Train for unusable input.
	ErrInvalidTrainingSet = errors.New("invalid training set")

	// ErrModelNotFound is returned by Load when the path does not exist.
	ErrModelNotFound = errors.New("model file not found")

	// ErrCorruptModel is returned by Load when the blob cannot be decoded.
	ErrCorruptModel = errors.New("corrupt model")

	// ErrModelIO is returned by Save when the blob cannot be written.
	ErrModelIO = errors.New("model io")
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxFeatures   = 5000
	DefaultC             = 1.0
	DefaultMaxIterations = 1000
)

// Config controls model fitting.
type Config struct {
	// MaxFeatures caps the vocabulary size.
	MaxFeatures int
	// C is the inverse L2 regularisation strength.
	C float64
	// MaxIterations bounds the optimizer.
	MaxIterations int
}

func (c Config) withDefaults() Config {
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = DefaultMaxFeatures
	}
	if c.C <= 0 {
		c.C = DefaultC
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// Info describes the current model.
type Info struct {
	Trained        bool             `json:"trained"`
	VocabularySize int              `json:"vocabulary_size,omitempty"`
	Classes        []label.Priority `json:"classes,omitempty"`
	Examples       int              `json:"examples,omitempty"`
	TrainedAt      time.Time        `json:"trained_at,omitzero"`
}

type model struct {
	vec       *vectorizer
	clf       *softmaxModel
	classes   []label.Priority
	cfg       Config
	examples  int
	trainedAt time.Time
}

// Classifier predicts a ticket priority from normalized text.
type Classifier struct {
	cfg Config

	// writeMu serialises Train and Load; mu guards the model pointer.
	writeMu sync.Mutex
	mu      sync.RWMutex
	m       *model
}

// New returns an untrained classifier. Zero Config fields take defaults.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg.withDefaults()}
}

// Train fits a new model on texts and their labels, discarding any previous
// model. It needs the same number of texts and labels, at least one of
// each, and at least two distinct labels.
func (c *Classifier) Train(texts []string, labels []label.Priority) error {
	if len(texts) != len(labels) {
		return fmt.Errorf("%w: %d texts but %d labels", ErrInvalidTrainingSet, len(texts), len(labels))
	}
	if len(texts) == 0 {
		return fmt.Errorf("%w: no examples", ErrInvalidTrainingSet)
	}

	var seen [label.NumPriorities]bool
	for i, l := range labels {
		if !l.Valid() {
			return fmt.Errorf("%w: example %d has invalid label %d", ErrInvalidTrainingSet, i, uint8(l))
		}
		seen[l] = true
	}
	var classes []label.Priority
	row := make(map[label.Priority]int, label.NumPriorities)
	for _, p := range label.Priorities() {
		if seen[p] {
			row[p] = len(classes)
			classes = append(classes, p)
		}
	}
	if len(classes) < 2 {
		return fmt.Errorf("%w: need at least 2 distinct labels, got %d", ErrInvalidTrainingSet, len(classes))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	vec := fitVectorizer(texts, c.cfg.MaxFeatures)
	if vec.size() == 0 {
		return fmt.Errorf("%w: empty vocabulary", ErrInvalidTrainingSet)
	}

	x := make([][]feature, len(texts))
	y := make([]int, len(texts))
	for i, t := range texts {
		x[i] = vec.transform(t)
		y[i] = row[labels[i]]
	}

	clf, err := fitSoftmax(x, y, len(classes), vec.size(), c.cfg.C, c.cfg.MaxIterations)
	if err != nil {
		return err
	}

	c.swap(&model{
		vec:       vec,
		clf:       clf,
		classes:   classes,
		cfg:       c.cfg,
		examples:  len(texts),
		trainedAt: time.Now().UTC(),
	})
	return nil
}

// Predict returns the priority for normalized text. Only labels seen during
// training can be returned. Text with no known terms gets the class with
// the largest intercept.
func (c *Classifier) Predict(text string) (label.Priority, error) {
	c.mu.RLock()
	m := c.m
	c.mu.RUnlock()
	if m == nil {
		return 0, ErrNotTrained
	}
	return m.classes[m.clf.decide(m.vec.transform(text))], nil
}

// Trained reports whether a model is loaded.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m != nil
}

// Info describes the current model.
func (c *Classifier) Info() Info {
	c.mu.RLock()
	m := c.m
	c.mu.RUnlock()
	if m == nil {
		return Info{}
	}
	return Info{
		Trained:        true,
		VocabularySize: m.vec.size(),
		Classes:        slices.Clone(m.classes),
		Examples:       m.examples,
		TrainedAt:      m.trainedAt,
	}
}

// MarshalBinary encodes the current model.
func (c *Classifier) MarshalBinary() ([]byte, error) {
	c.mu.RLock()
	m := c.m
	c.mu.RUnlock()
	if m == nil {
		return nil, ErrNotTrained
	}
	return encodeModel(m)
}

// UnmarshalBinary replaces the current model with the one encoded in b.
func (c *Classifier) UnmarshalBinary(b []byte) error {
	m, err := decodeModel(b)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.swap(m)
	return nil
}

// Save writes the model to path atomically: the blob goes to a temporary
// file in the same directory which is then renamed over path.
func (c *Classifier) Save(path string) error {
	blob, err := c.MarshalBinary()
	if err != nil {
		if errors.Is(err, ErrNotTrained) {
			return err
		}
		return fmt.Errorf("%w: encode: %w", ErrModelIO, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", ErrModelIO, err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModelIO, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrModelIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrModelIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrModelIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrModelIO, path, err)
	}
	return nil
}

// Load replaces the current model with the one saved at path. A missing
// file yields ErrModelNotFound; anything unreadable yields ErrCorruptModel.
// On error the current model is left untouched.
func (c *Classifier) Load(path string) error {
	blob, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return fmt.Errorf("%w: read %s: %w", ErrCorruptModel, path, err)
	}
	return c.UnmarshalBinary(blob)
}

func (c *Classifier) swap(m *model) {
	c.mu.Lock()
	c.m = m
	c.mu.Unlock()
}
