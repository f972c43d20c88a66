package grading

import (
	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/validate"
)

// Grade is the verdict on one example.
type Grade struct {
	ID string `json:"id"`

	// Size is num_people for meetings and num_cities for trips.
	Size int `json:"size"`

	Correct bool `json:"correct"`

	// Score and GoldenScore are meeting scores.
	Score       int `json:"score"`
	GoldenScore int `json:"golden_score"`

	// Matched is the number of leading golden stays a trip prediction got right.
	Matched int `json:"matched,omitempty"`

	// Violations are the collect-all findings on the prediction.
	Violations []string `json:"violations,omitempty"`

	// Reason is why scoring of the prediction stopped early, if it did.
	Reason string `json:"reason,omitempty"`
}

// GradeMeeting scores the prediction and the golden plan of ex.
func GradeMeeting(ex *dataset.MeetingExample) (Grade, error) {
	p, err := ex.Problem()
	if err != nil {
		return Grade{}, err
	}

	size := ex.NumPeople
	if size == 0 {
		size = p.Meetings.Len()
	}
	g := Grade{ID: ex.ID, Size: size}

	pred := plan.ParseText(ex.Prediction)
	score, reason := validate.ScoreWithReason(pred, p)
	g.Score = score
	if reason != nil {
		g.Reason = reason.Error()
	}
	g.GoldenScore = validate.Score(plan.ParseSentences(ex.GoldenPlan), p)
	g.Correct = g.Score == g.GoldenScore
	g.Violations = validate.Violations(pred, p)
	return g, nil
}

// GradeTrip compares the parsed prediction of ex with its golden stays. When
// ex carries constraints the prediction is also checked against them.
func GradeTrip(ex *dataset.TripExample) (Grade, error) {
	golden, err := ex.GoldenStays()
	if err != nil {
		return Grade{}, err
	}

	size := ex.NumCities
	if size == 0 {
		size = len(golden)
	}
	g := Grade{ID: ex.ID, Size: size}

	predicted := plan.ParseTripResponse(ex.Prediction).Stays()
	g.Matched = matchedPrefix(golden, predicted)
	g.Correct = len(golden) > 0 && g.Matched == len(golden)
	if len(ex.Constraints) > 0 {
		g.Violations = validate.CheckTrip(ex.Constraints, predicted)
	}
	return g, nil
}

// matchedPrefix counts leading stays of predicted equal to golden.
func matchedPrefix(golden, predicted []plan.Stay) int {
	n := 0
	for i := 0; i < len(golden) && i < len(predicted); i++ {
		if golden[i] != predicted[i] {
			break
		}
		n++
	}
	return n
}
