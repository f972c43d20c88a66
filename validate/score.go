package validate

import (
	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/planerr"
)

// Score walks steps and returns the number of meetings completed before the
// first broken rule. Unlike Run it stops at the first problem, and a meeting
// always lasts the person's required duration whatever the text states.
func Score(steps []plan.Step, p Problem) int {
	n, _ := ScoreWithReason(steps, p)
	return n
}

// ScoreText parses a sentence-per-step plan and scores it.
func ScoreText(raw string, p Problem) int {
	return Score(plan.ParseText(raw), p)
}

// ScoreRecords scores a structured plan. The first record is the starting
// point; a location change between records implies travel.
func ScoreRecords(records []plan.Record, p Problem) int {
	return Score(plan.FromRecords(records), p)
}

// StepError explains why scoring stopped.
type StepError struct {
	// Index is the position of the offending step.
	Index int
	Step  plan.Step
	Err   error
}

func (e *StepError) Error() string {
	return "step " + e.Step.Text() + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ScoreWithReason is Score that also returns the reason scoring stopped, or
// nil when every step was accepted.
func ScoreWithReason(steps []plan.Step, p Problem) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}

	s := newSim(p)
	score := 0
	for i, step := range steps {
		met, err := scoreStep(s, step)
		if err != nil {
			return score, &StepError{Index: i, Step: step, Err: err}
		}
		if met {
			score++
		}
	}
	return score, nil
}

func violation(format string, args ...any) error {
	return planerr.Newf("score", planerr.CodeViolation, format, args...)
}

// scoreStep applies one step. met is true when the step completed a meeting.
func scoreStep(s *sim, step plan.Step) (met bool, err error) {
	switch st := step.(type) {
	case plan.Start:
		return false, nil

	case plan.Travel:
		return false, s.travelTo(st.Destination)

	case plan.Wait:
		if !st.Until.After(s.now) {
			return false, violation("cannot go backwards in time from %s to %s", s.now, st.UntilText)
		}
		s.now = st.Until
		return false, nil

	case plan.Meet:
		return scoreMeeting(s, st.Person)

	case plan.Arrive:
		if st.Location != "" && st.Location != s.location {
			if err := s.travelTo(st.Location); err != nil {
				return false, err
			}
		}
		if st.At.Before(s.now) {
			return false, violation("start time %s too early, current time is %s", st.At, s.now)
		}
		s.now = st.At
		if !s.p.Meetings.Has(st.Person) {
			return false, nil
		}
		return scoreMeeting(s, st.Person)

	case plan.Malformed:
		return false, st.Err

	default:
		return false, violation("unknown plan format")
	}
}

func scoreMeeting(s *sim, name string) (bool, error) {
	if s.book(name) {
		return false, violation("person %s already met", name)
	}
	person, err := s.p.Meetings.Person(name)
	if err != nil {
		return false, err
	}
	if len(s.meetingViolations(person, person.Duration)) > 0 {
		return false, violation("invalid meeting time or location for %s", name)
	}
	s.meet(person.Name, person.Duration)
	return true, nil
}
