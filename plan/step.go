package plan

import (
	"fmt"

	"github.com/zero-day-ai/itinerary/clock"
)

// Kind identifies a step variant.
type Kind string

const (
	KindStart        Kind = "start"
	KindTravel       Kind = "travel"
	KindWait         Kind = "wait"
	KindMeet         Kind = "meet"
	KindArrive       Kind = "arrive"
	KindUnrecognized Kind = "unrecognized"
	KindMalformed    Kind = "malformed"
)

// Step is one element of a meeting plan, in execution order.
type Step interface {
	Kind() Kind
	// Text is the source sentence or a rendering of the source record.
	Text() string
}

// Start is "You start at <location> at <time>". It carries no state change;
// the initial condition comes from the problem instance.
type Start struct {
	Raw      string
	Location string
	Time     clock.Time
}

// Travel is "You travel to <destination> in <n> minutes ...". Minutes is the
// duration stated in the text and is informational only.
type Travel struct {
	Raw         string
	Destination string
	Minutes     int
}

// Wait is "You wait until <time>".
type Wait struct {
	Raw string
	// Until is the parsed target time; UntilText is the text as written.
	Until     clock.Time
	UntilText string
}

// Meet is "You meet <person> for <n> minutes ...".
type Meet struct {
	Raw     string
	Person  string
	Minutes int
}

// Arrive is a structured record: move to Location if it differs from the
// current one, be there at At, then meet Person if Person is constrained.
type Arrive struct {
	Location string
	At       clock.Time
	Person   string
}

// Unrecognized is a sentence with none of the known verbs.
type Unrecognized struct {
	Raw string
}

// Malformed is a sentence with a known verb whose fields could not be
// extracted.
type Malformed struct {
	Raw  string
	Verb Kind
	Err  error
}

func (Start) Kind() Kind        { return KindStart }
func (Travel) Kind() Kind       { return KindTravel }
func (Wait) Kind() Kind         { return KindWait }
func (Meet) Kind() Kind         { return KindMeet }
func (Arrive) Kind() Kind       { return KindArrive }
func (Unrecognized) Kind() Kind { return KindUnrecognized }
func (Malformed) Kind() Kind    { return KindMalformed }

func (s Start) Text() string        { return s.Raw }
func (s Travel) Text() string       { return s.Raw }
func (s Wait) Text() string         { return s.Raw }
func (s Meet) Text() string         { return s.Raw }
func (s Unrecognized) Text() string { return s.Raw }
func (s Malformed) Text() string    { return s.Raw }

func (s Arrive) Text() string {
	return fmt.Sprintf("{location: %s, person_name: %s, start_time: %s}", s.Location, s.Person, s.At)
}

// Error returns the parse failure.
func (s Malformed) Error() string {
	return s.Err.Error()
}

// Unwrap exposes the parse failure to errors.Is.
func (s Malformed) Unwrap() error {
	return s.Err
}
