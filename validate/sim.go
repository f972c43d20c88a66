package validate

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/planerr"
	"github.com/zero-day-ai/itinerary/travel"
)

// Problem is one meeting-planning instance.
type Problem struct {
	Meetings *constraint.Meetings
	Start    constraint.Start
	Table    travel.Table
}

func (p Problem) check() error {
	if p.Meetings == nil {
		return planerr.New("validate", planerr.CodeInvalidInput, "problem has no meetings")
	}
	return nil
}

// sim is the simulation state of one plan. booked holds every person a
// meeting was attempted with and is only consulted when scoring; met holds
// those whose meeting broke no rule.
type sim struct {
	p        Problem
	location string
	now      clock.Time
	booked   map[string]struct{}
	met      map[string]struct{}
}

func newSim(p Problem) *sim {
	return &sim{
		p:        p,
		location: p.Start.Location,
		now:      p.Start.Time,
		booked:   make(map[string]struct{}),
		met:      make(map[string]struct{}),
	}
}

// travelTo moves to dest, advancing the clock by the table's travel time.
func (s *sim) travelTo(dest string) error {
	m, err := s.p.Table.Minutes(s.location, dest)
	if err != nil {
		return err
	}
	s.now = s.now.Add(m)
	s.location = dest
	return nil
}

// book records a meeting attempt and reports whether name was already booked.
func (s *sim) book(name string) (already bool) {
	if _, ok := s.booked[name]; ok {
		return true
	}
	s.booked[name] = struct{}{}
	return false
}

// hasMet reports whether name was already met without breaking a rule.
func (s *sim) hasMet(name string) bool {
	_, ok := s.met[name]
	return ok
}

// meetingViolations lists every rule a meeting of the given length starting
// now would break.
func (s *sim) meetingViolations(p constraint.Person, minutes int) []string {
	var out []string
	end := s.now.Add(minutes)

	if minutes != p.Duration {
		out = append(out, fmt.Sprintf(
			"Incorrect meeting duration for %s: Meeting scheduled for %d minutes but should be %d minutes",
			p.Name, minutes, p.Duration))
	}
	if s.location != p.Location {
		out = append(out, fmt.Sprintf(
			"Location mismatch for %s: Meeting at %s but should be at %s",
			p.Name, s.location, p.Location))
	}
	if s.now.Before(p.Window.Start) {
		out = append(out, fmt.Sprintf(
			"Too early for %s: Meeting starts at %s but available from %s",
			p.Name, s.now, p.Window.Start))
	}
	if end.After(p.Window.End) {
		out = append(out, fmt.Sprintf(
			"Too late for %s: Meeting ends at %s but must end by %s",
			p.Name, end, p.Window.End))
	}
	return out
}

// meet records a completed meeting.
func (s *sim) meet(name string, minutes int) {
	s.met[name] = struct{}{}
	s.now = s.now.Add(minutes)
}

func (s *sim) metNames() []string {
	out := make([]string, 0, len(s.met))
	for name := range s.met {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *sim) unmet() []string {
	var out []string
	for _, name := range s.p.Meetings.Names() {
		if _, ok := s.met[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
