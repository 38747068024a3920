// Package dataset reads labeled ticket examples for training the priority
// classifier. The format is CSV with a header row naming at least the
// Title, Description, and Priority columns, in any order.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/linnemanlabs/sift/internal/label"
)

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidPriority is returned for a priority outside Low|Medium|High|Critical.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrEmpty is returned when the file has a header but no examples.
	ErrEmpty = errors.New("dataset has no examples")
)

// Column names, matched case-insensitively.
const (
	ColumnTitle       = "Title"
	ColumnDescription = "Description"
	ColumnPriority    = "Priority"
)

//go:embed sample_tickets.csv
var sampleCSV []byte

// Example is one labeled ticket.
type Example struct {
	Title       string
	Description string
	Priority    label.Priority
}

// Load reads a dataset file.
func Load(path string) ([]Example, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	out, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Read parses CSV from r. Extra columns are ignored. Errors name the line
// they occurred on.
func Read(r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		// a UTF-8 BOM from spreadsheet exports sticks to the first name
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var idx [3]int
	var missing []string
	for i, name := range []string{ColumnTitle, ColumnDescription, ColumnPriority} {
		j, ok := cols[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = j
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	var out []Example
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line, _ := cr.FieldPos(0)

		field := func(i int) string {
			if idx[i] >= len(rec) {
				return ""
			}
			return rec[idx[i]]
		}
		p, err := label.ParsePriority(field(2))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w %q", line, ErrInvalidPriority, field(2))
		}
		out = append(out, Example{
			Title:       field(0),
			Description: field(1),
			Priority:    p,
		})
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Sample returns the built-in example set.
func Sample() []Example {
	out, err := Read(bytes.NewReader(sampleCSV))
	if err != nil {
		panic(fmt.Sprintf("embedded sample dataset: %v", err))
	}
	return out
}
