package plan

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/itinerary/clock"
)

// Record is one element of a structured meeting plan. PersonName is "N/A"
// (or any unconstrained name) for pure movement records.
type Record struct {
	Location   string `json:"location" yaml:"location"`
	PersonName string `json:"person_name" yaml:"person_name"`
	StartTime  string `json:"start_time" yaml:"start_time"`
}

// FromRecords converts a structured plan into steps. The first record is the
// starting point and is skipped; each later record becomes an Arrive, or a
// Malformed when its start time does not parse.
func FromRecords(records []Record) []Step {
	if len(records) <= 1 {
		return nil
	}
	steps := make([]Step, 0, len(records)-1)
	for _, r := range records[1:] {
		at, err := clock.Parse(r.StartTime)
		if err != nil {
			steps = append(steps, Malformed{Raw: r.String(), Verb: KindArrive, Err: err})
			continue
		}
		steps = append(steps, Arrive{
			Location: strings.TrimSpace(r.Location),
			At:       at,
			Person:   strings.TrimSpace(r.PersonName),
		})
	}
	return steps
}

func (r Record) String() string {
	return fmt.Sprintf("{location: %s, person_name: %s, start_time: %s}", r.Location, r.PersonName, r.StartTime)
}
