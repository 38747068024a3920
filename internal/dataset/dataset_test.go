package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/sift/internal/label"
)

func TestRead(t *testing.T) {
	t.Parallel()

	in := "Priority,Extra,Title,Description\n" +
		"High,x,VPN down,\"Remote staff, blocked\"\n" +
		"Low,y,Mouse request,Whenever\n"

	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []Example{
		{Title: "VPN down", Description: "Remote staff, blocked", Priority: label.PriorityHigh},
		{Title: "Mouse request", Description: "Whenever", Priority: label.PriorityLow},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d examples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("example %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRead_HeaderVariants(t *testing.T) {
	t.Parallel()

	in := "\ufefftitle, DESCRIPTION ,priority\nA,B,Medium\n"
	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 1 || got[0].Priority != label.PriorityMedium {
		t.Errorf("got %+v", got)
	}
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr error
		substr  string
	}{
		{"empty input", "", ErrEmpty, ""},
		{"header only", "Title,Description,Priority\n", ErrEmpty, ""},
		{"missing priority column", "Title,Description\nA,B\n", ErrMissingColumn, "Priority"},
		{"missing two columns", "Title\nA\n", ErrMissingColumn, "Description, Priority"},
		{"lowercase priority value", "Title,Description,Priority\nA,B,High\nC,D,high\n", ErrInvalidPriority, "line 3"},
		{"unknown priority value", "Title,Description,Priority\nA,B,Urgent\n", ErrInvalidPriority, "line 2"},
		{"short row", "Title,Description,Priority\nA\n", ErrInvalidPriority, "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(strings.NewReader(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Read err = %v, want %v", err, tt.wantErr)
			}
			if tt.substr != "" && !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not contain %q", err, tt.substr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tickets.csv")
	if err := os.WriteFile(path, []byte("Title,Description,Priority\nA,B,Critical\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Priority != label.PriorityCritical {
		t.Errorf("got %+v", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) err = %v, want not exist", err)
	}
}

func TestSample(t *testing.T) {
	t.Parallel()

	examples := Sample()
	if len(examples) < 40 {
		t.Fatalf("sample has %d examples, want at least 40", len(examples))
	}
	counts := make(map[label.Priority]int)
	for _, e := range examples {
		if e.Title == "" || e.Description == "" {
			t.Errorf("sample row has empty field: %+v", e)
		}
		counts[e.Priority]++
	}
	for _, p := range label.Priorities() {
		if counts[p] < 5 {
			t.Errorf("sample has %d %v examples, want at least 5", counts[p], p)
		}
	}
}
