package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/travel"
	"github.com/zero-day-ai/itinerary/validate"
)

// Sentences is a plan stored either as one string or as a list of sentences.
type Sentences []string

// UnmarshalJSON accepts a string (split on periods) or a list of strings.
func (s *Sentences) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		*s = plan.SplitSentences(text)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("plan must be a string or a list of strings: %w", err)
	}
	*s = list
	return nil
}

// MeetingExample is one meeting-planning instance.
type MeetingExample struct {
	// ID is the key of the example in its file.
	ID string `json:"-"`

	NumPeople int `json:"num_people"`

	// Constraints holds the start tuple [location, time] followed by one
	// [name, location, "from to to", minutes] tuple per person.
	Constraints []json.RawMessage `json:"constraints"`

	DistMatrix travel.Table `json:"dist_matrix"`
	GoldenPlan Sentences    `json:"golden_plan,omitempty"`
	Prediction string       `json:"pred_5shot_pro"`

	Prompt0Shot string `json:"prompt_0shot,omitempty"`
	Prompt5Shot string `json:"prompt_5shot,omitempty"`
}

// Problem builds the validation problem of the example.
func (e *MeetingExample) Problem() (validate.Problem, error) {
	start, meetings, err := constraint.MeetingsFromTuples(e.Constraints)
	if err != nil {
		return validate.Problem{}, fmt.Errorf("example %s: %w", e.ID, err)
	}
	return validate.Problem{Meetings: meetings, Start: start, Table: e.DistMatrix}, nil
}

// Validate checks the example decodes into a consistent problem.
func (e *MeetingExample) Validate() error {
	p, err := e.Problem()
	if err != nil {
		return err
	}
	if err := p.Table.Validate(); err != nil {
		return fmt.Errorf("example %s: %w", e.ID, err)
	}
	if e.NumPeople != 0 && e.NumPeople != p.Meetings.Len() {
		return fmt.Errorf("example %s: num_people is %d but constraints name %d people", e.ID, e.NumPeople, p.Meetings.Len())
	}
	return nil
}

// MeetingSet is an ordered collection of meeting examples.
type MeetingSet struct {
	Examples []*MeetingExample
}

// LoadMeetings loads and validates a meeting-planning file. Examples are
// ordered by id.
func LoadMeetings(path string) (*MeetingSet, error) {
	raw, err := decodeFile[*MeetingExample](path)
	if err != nil {
		return nil, err
	}

	set := &MeetingSet{Examples: make([]*MeetingExample, 0, len(raw))}
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
func (s *MeetingSet) Save(path string) error {
	out := make(map[string]*MeetingExample, len(s.Examples))
	for _, ex := range s.Examples {
		out[ex.ID] = ex
	}
	return encodeFile(path, out)
}

// Get returns the example with id, or nil.
func (s *MeetingSet) Get(id string) *MeetingExample {
	for _, ex := range s.Examples {
		if ex.ID == id {
			return ex
		}
	}
	return nil
}
