package dataset

import (
	"fmt"
	"strconv"

	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/plan"
)

// TripExample is one trip-planning instance. Cities and Durations are the
// golden stays, "**"-separated.
type TripExample struct {
	ID string `json:"-"`

	NumCities   int             `json:"num_cities"`
	Cities      string          `json:"cities"`
	Durations   string          `json:"durations"`
	Constraints constraint.Trip `json:"constraints,omitempty"`
	Prediction  string          `json:"pred_5shot_pro"`

	Prompt0Shot string `json:"prompt_0shot,omitempty"`
	Prompt5Shot string `json:"prompt_5shot,omitempty"`
}

// GoldenStays returns the expected (city, days) sequence.
func (e *TripExample) GoldenStays() ([]plan.Stay, error) {
	cities := plan.SplitField(e.Cities)
	durations := plan.SplitField(e.Durations)
	if len(cities) != len(durations) {
		return nil, fmt.Errorf("example %s: %d cities but %d durations", e.ID, len(cities), len(durations))
	}
	stays := make([]plan.Stay, len(cities))
	for i, c := range cities {
		d, err := strconv.Atoi(durations[i])
		if err != nil {
			return nil, fmt.Errorf("example %s: duration %q: %w", e.ID, durations[i], err)
		}
		stays[i] = plan.Stay{City: c, Days: d}
	}
	return stays, nil
}

// Validate checks the golden stays and constraints are well formed.
func (e *TripExample) Validate() error {
	stays, err := e.GoldenStays()
	if err != nil {
		return err
	}
	if e.NumCities != 0 && e.NumCities != len(stays) {
		return fmt.Errorf("example %s: num_cities is %d but %d cities listed", e.ID, e.NumCities, len(stays))
	}
	if err := e.Constraints.Validate(); err != nil {
		return fmt.Errorf("example %s: %w", e.ID, err)
	}
	return nil
}

// TripSet is an ordered collection of trip examples.
type TripSet struct {
	Examples []*TripExample
}

// LoadTrips loads and validates a trip-planning file. Examples are ordered
// by id.
func LoadTrips(path string) (*TripSet, error) {
	raw, err := decodeFile[*TripExample](path)
	if err != nil {
		return nil, err
	}

	set := &TripSet{Examples: make([]*TripExample, 0, len(raw))}
	for _, id := range sortedKeys(raw) {
		ex := raw[id]
		if ex == nil {
			return nil, fmt.Errorf("example %s is null", id)
		}
		ex.ID = id
		if err := ex.Validate(); err != nil {
			return nil, fmt.Errorf("dataset validation failed: %w", err)
		}
		set.Examples = append(set.Examples, ex)
	}
	return set, nil
}

// Save writes the set back under the same schema.
func (s *TripSet) Save(path string) error {
	out := make(map[string]*TripExample, len(s.Examples))
	for _, ex := range s.Examples {
		out[ex.ID] = ex
	}
	return encodeFile(path, out)
}

// Get returns the example with id, or nil.
func (s *TripSet) Get(id string) *TripExample {
	for _, ex := range s.Examples {
		if ex.ID == id {
			return ex
		}
	}
	return nil
}
