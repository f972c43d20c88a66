package validate

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/plan"
)

// Outcome is the result of a collect-all validation.
type Outcome struct {
	// Violations is empty when the plan satisfies every constraint.
	Violations []string `json:"violations"`

	// Met lists the people met without breaking any rule, sorted.
	Met []string `json:"met"`

	// Location and Time are the final simulated position.
	Location string     `json:"location"`
	Time     clock.Time `json:"time"`
}

// Valid reports whether no violation was recorded.
func (o Outcome) Valid() bool {
	return len(o.Violations) == 0
}

// Violations checks steps against p and returns every violation, in step
// order, followed by one aggregated entry for people never met.
func Violations(steps []plan.Step, p Problem) []string {
	return Run(steps, p).Violations
}

// Run is Violations with the final simulation state.
//
// Nothing aborts the walk. Parse, lookup and route errors are recorded
// against the offending step and the walk continues. A meeting that breaks
// any rule does not consume time and leaves the person unmet, so a later
// attempt may still meet them. Only a meeting after a successful one is a
// double booking.
func Run(steps []plan.Step, p Problem) Outcome {
	if err := p.check(); err != nil {
		return Outcome{Violations: []string{err.Error()}}
	}

	s := newSim(p)
	var out []string
	stepError := func(step plan.Step, err error) {
		out = append(out, fmt.Sprintf("Error processing step '%s': %s", step.Text(), err))
	}

	for _, step := range steps {
		switch st := step.(type) {
		case plan.Start:
			// The initial condition comes from the problem, not the text.

		case plan.Travel:
			if err := s.travelTo(st.Destination); err != nil {
				stepError(step, err)
			}

		case plan.Wait:
			if !st.Until.After(s.now) {
				out = append(out, fmt.Sprintf(
					"Invalid wait time: Cannot wait until %s when current time is %s", st.UntilText, s.now))
				continue
			}
			s.now = st.Until

		case plan.Meet:
			if s.hasMet(st.Person) {
				out = append(out, fmt.Sprintf("Double booking: Attempted to meet %s twice", st.Person))
				continue
			}
			person, err := p.Meetings.Person(st.Person)
			if err != nil {
				stepError(step, err)
				continue
			}
			if v := s.meetingViolations(person, st.Minutes); len(v) > 0 {
				out = append(out, v...)
				continue
			}
			s.meet(person.Name, st.Minutes)

		case plan.Arrive:
			if st.Location != "" && st.Location != s.location {
				if err := s.travelTo(st.Location); err != nil {
					stepError(step, err)
					continue
				}
			}
			if st.At.Before(s.now) {
				out = append(out, fmt.Sprintf(
					"Invalid start time: Cannot be at %s at %s when current time is %s", s.location, st.At, s.now))
				continue
			}
			s.now = st.At
			if !p.Meetings.Has(st.Person) {
				continue
			}
			if s.hasMet(st.Person) {
				out = append(out, fmt.Sprintf("Double booking: Attempted to meet %s twice", st.Person))
				continue
			}
			person, _ := p.Meetings.Person(st.Person)
			if v := s.meetingViolations(person, person.Duration); len(v) > 0 {
				out = append(out, v...)
				continue
			}
			s.meet(person.Name, person.Duration)

		case plan.Malformed:
			stepError(step, st.Err)

		default:
			out = append(out, fmt.Sprintf("Unknown step format: %s", step.Text()))
		}
	}

	if unmet := s.unmet(); len(unmet) > 0 {
		out = append(out, fmt.Sprintf("Did not meet with: %s", strings.Join(unmet, ", ")))
	}

	return Outcome{
		Violations: out,
		Met:        s.metNames(),
		Location:   s.location,
		Time:       s.now,
	}
}
