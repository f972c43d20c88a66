// Package constraint models the per-entity requirements of a planning
// instance: people to meet in a city, or cities to visit on a trip.
//
// Constraint sets are built once per instance and are read-only afterwards.
package constraint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/planerr"
)

// Window is the availability interval of a person. A meeting must start at
// or after Start and end at or before End.
type Window struct {
	Start clock.Time
	End   clock.Time
}

// Contains reports whether [from, to] lies inside the window.
func (w Window) Contains(from, to clock.Time) bool {
	return !from.Before(w.Start) && !to.After(w.End)
}

func (w Window) String() string {
	return w.Start.String() + " to " + w.End.String()
}

// Person is a meeting requirement.
type Person struct {
	Name     string
	Location string
	Window   Window
	// Duration is the exact number of minutes the meeting must last.
	Duration int
}

// Start is the externally supplied initial condition of a meeting plan.
type Start struct {
	Location string
	Time     clock.Time
}

// Meetings is an immutable set of people keyed by name.
type Meetings struct {
	people map[string]Person
	names  []string
}

// NewMeetings builds a set from people. Names must be unique and non-empty.
func NewMeetings(people []Person) (*Meetings, error) {
	m := &Meetings{people: make(map[string]Person, len(people))}
	for _, p := range people {
		if p.Name == "" {
			return nil, planerr.New("build_meetings", planerr.CodeInvalidInput, "person with empty name")
		}
		if _, dup := m.people[p.Name]; dup {
			return nil, planerr.Newf("build_meetings", planerr.CodeInvalidInput, "duplicate person %q", p.Name)
		}
		if p.Window.End.Before(p.Window.Start) {
			return nil, planerr.Newf("build_meetings", planerr.CodeInvalidInput,
				"window of %q ends before it starts (%s)", p.Name, p.Window)
		}
		m.people[p.Name] = p
		m.names = append(m.names, p.Name)
	}
	sort.Strings(m.names)
	return m, nil
}

// Person returns the requirement for name.
func (m *Meetings) Person(name string) (Person, error) {
	p, ok := m.people[name]
	if !ok {
		return Person{}, planerr.UnknownEntity("person", name)
	}
	return p, nil
}

// Has reports whether name is constrained.
func (m *Meetings) Has(name string) bool {
	_, ok := m.people[name]
	return ok
}

// Names returns every constrained name, sorted.
func (m *Meetings) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Len returns the number of people.
func (m *Meetings) Len() int {
	return len(m.names)
}

// PersonFromTuple decodes the dataset tuple shape
// [name, location, "9:00AM to 5:00PM", minutes].
func PersonFromTuple(raw json.RawMessage) (Person, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Person{}, planerr.New("decode_person", planerr.CodeInvalidInput, "person is not a list").WithCause(err)
	}
	if len(tuple) != 4 {
		return Person{}, planerr.Newf("decode_person", planerr.CodeInvalidInput,
			"person tuple has %d fields, want 4", len(tuple))
	}

	var p Person
	var window string
	for i, dst := range []any{&p.Name, &p.Location, &window, &p.Duration} {
		if err := json.Unmarshal(tuple[i], dst); err != nil {
			return Person{}, planerr.Newf("decode_person", planerr.CodeInvalidInput,
				"field %d of person tuple", i).WithCause(err)
		}
	}

	w, err := ParseWindow(window)
	if err != nil {
		return Person{}, fmt.Errorf("person %q: %w", p.Name, err)
	}
	p.Window = w
	return p, nil
}

// ParseWindow parses "9:00AM to 5:00PM".
func ParseWindow(text string) (Window, error) {
	from, to, ok := strings.Cut(text, "to")
	if !ok {
		return Window{}, planerr.Parse("parse_window", "invalid window %q", text)
	}
	start, err := clock.Parse(from)
	if err != nil {
		return Window{}, err
	}
	end, err := clock.Parse(to)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// StartFromTuple decodes [location, "9:00AM"].
func StartFromTuple(raw json.RawMessage) (Start, error) {
	var tuple []string
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return Start{}, planerr.New("decode_start", planerr.CodeInvalidInput, "start is not a list of strings").WithCause(err)
	}
	if len(tuple) != 2 {
		return Start{}, planerr.Newf("decode_start", planerr.CodeInvalidInput,
			"start tuple has %d fields, want 2", len(tuple))
	}
	t, err := clock.Parse(tuple[1])
	if err != nil {
		return Start{}, err
	}
	return Start{Location: tuple[0], Time: t}, nil
}

// MeetingsFromTuples decodes the constraints list of a meeting instance: the
// first element is the start tuple, the rest are person tuples.
func MeetingsFromTuples(raw []json.RawMessage) (Start, *Meetings, error) {
	if len(raw) == 0 {
		return Start{}, nil, planerr.New("decode_constraints", planerr.CodeInvalidInput, "empty constraints")
	}
	start, err := StartFromTuple(raw[0])
	if err != nil {
		return Start{}, nil, err
	}
	people := make([]Person, 0, len(raw)-1)
	for _, r := range raw[1:] {
		p, err := PersonFromTuple(r)
		if err != nil {
			return Start{}, nil, err
		}
		people = append(people, p)
	}
	m, err := NewMeetings(people)
	if err != nil {
		return Start{}, nil, err
	}
	return start, m, nil
}
