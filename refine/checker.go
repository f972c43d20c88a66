package refine

import (
	"strings"

	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/validate"
)

// Verdict is the result of checking one candidate.
type Verdict struct {
	Plan       string   `json:"plan"`
	Violations []string `json:"violations"`

	// Score is the meetings completed before the first broken rule. Trip
	// checkers leave it zero.
	Score int `json:"score"`
}

// Checker validates candidates of one planning domain.
type Checker interface {
	// Marker precedes the plan body in a generator response.
	Marker() string

	// Check returns every violation of candidate.
	Check(candidate string) Verdict

	// Feedback renders violations for the next generator request.
	Feedback(violations []string) string
}

// MeetingChecker checks sentence-per-step meeting plans.
type MeetingChecker struct {
	Problem validate.Problem
}

func (MeetingChecker) Marker() string { return plan.MarkerSolution }

func (c MeetingChecker) Check(candidate string) Verdict {
	steps := plan.ParseText(candidate)
	return Verdict{
		Plan:       candidate,
		Violations: validate.Violations(steps, c.Problem),
		Score:      validate.Score(steps, c.Problem),
	}
}

func (MeetingChecker) Feedback(violations []string) string {
	return "Here is feedback on the best plan:\n* " + strings.Join(violations, "\n* ")
}

// NoTripPlan is reported for a response from which no stays can be parsed.
const NoTripPlan = "No trip plan found: expected day ranges and flights such as 'Day 3: Fly from A to B'."

// TripChecker checks day-range trip responses.
type TripChecker struct {
	Trip constraint.Trip
}

func (TripChecker) Marker() string { return plan.MarkerPlan }

func (c TripChecker) Check(candidate string) Verdict {
	stays := plan.ParseTripResponse(candidate).Stays()
	if len(stays) == 0 {
		return Verdict{Plan: candidate, Violations: []string{NoTripPlan}}
	}
	return Verdict{Plan: candidate, Violations: validate.CheckTrip(c.Trip, stays)}
}

func (TripChecker) Feedback(violations []string) string {
	return "There are errors in the plan, please fix them: " + strings.Join(violations, "\n*")
}
