// Package label defines the closed label sets sift classifies into: ticket
// priorities (ordered, with a fixed integer index) and routing teams.
package label

import (
	"errors"
	"fmt"
)

// ErrUnknownLabel is returned when parsing a name outside the label set.
var ErrUnknownLabel = errors.New("unknown label")

// Priority is the urgency of a ticket. The numeric value is the class index
// used by the classifier and is part of the persisted model format.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// NumPriorities is the size of the priority label space.
const NumPriorities = 4

var priorityNames = [NumPriorities]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

// Priorities returns every priority in index order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// PriorityNames returns the display names in index order.
func PriorityNames() []string {
	out := make([]string, NumPriorities)
	copy(out, priorityNames[:])
	return out
}

// String returns the display name ("Low", "Medium", "High", "Critical").
func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
	return priorityNames[p]
}

// Valid reports whether p is one of the four defined priorities.
func (p Priority) Valid() bool {
	return p < NumPriorities
}

// Index returns the class index of p.
func (p Priority) Index() int {
	return int(p)
}

// AtLeast reports whether p is as urgent as or more urgent than min.
func (p Priority) AtLeast(minimum Priority) bool {
	return p >= minimum
}

// PriorityFromIndex maps a class index back to its priority.
func PriorityFromIndex(i int) (Priority, error) {
	if i < 0 || i >= NumPriorities {
		return 0, fmt.Errorf("%w: priority index %d", ErrUnknownLabel, i)
	}
	return Priority(i), nil
}

// ParsePriority parses an exact display name. Matching is case-sensitive
// so that dataset typos surface instead of being silently folded.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if name == s {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: priority %q", ErrUnknownLabel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: priority index %d", ErrUnknownLabel, uint8(p))
	}
	return []byte(priorityNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Team is the group a ticket is routed to.
type Team string

const (
	TeamNetwork  Team = "network"
	TeamHardware Team = "hardware"
	TeamSoftware Team = "software"
	TeamSecurity Team = "security"
)

// DefaultTeam receives tickets with no keyword evidence or an ambiguous tie.
const DefaultTeam = TeamSoftware

// Teams returns every team in a fixed order.
func Teams() []Team {
	return []Team{TeamNetwork, TeamHardware, TeamSoftware, TeamSecurity}
}

// Valid reports whether t is one of the defined teams.
func (t Team) Valid() bool {
	switch t {
	case TeamNetwork, TeamHardware, TeamSoftware, TeamSecurity:
		return true
	}
	return false
}

func (t Team) String() string { return string(t) }

// ParseTeam parses an exact lowercase team name.
func ParseTeam(s string) (Team, error) {
	t := Team(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: team %q", ErrUnknownLabel, s)
	}
	return t, nil
}
