package constraint

import (
	"slices"
	"sort"

	"github.com/zero-day-ai/itinerary/planerr"
)

// City is a trip-planning requirement.
type City struct {
	// NumDays is the exact stay length, flight days included.
	NumDays int `json:"num_days" yaml:"num_days"`

	// Flights lists the cities reachable by a direct outbound flight.
	Flights []string `json:"flights" yaml:"flights"`

	// DayConstraints, when non-empty, lists the permissible start days.
	DayConstraints []int `json:"day_constraints" yaml:"day_constraints"`
}

// CanFlyTo reports whether dest is an outbound flight of c.
func (c City) CanFlyTo(dest string) bool {
	return slices.Contains(c.Flights, dest)
}

// AllowsStartDay reports whether a stay may begin on day.
func (c City) AllowsStartDay(day int) bool {
	return len(c.DayConstraints) == 0 || slices.Contains(c.DayConstraints, day)
}

// Trip maps city name to its requirement. The flight relation is directional
// as given; "between A and B" must appear in both cities' Flights.
type Trip map[string]City

// City returns the requirement for name.
func (t Trip) City(name string) (City, error) {
	c, ok := t[name]
	if !ok {
		return City{}, planerr.UnknownEntity("city", name)
	}
	return c, nil
}

// Names returns every city, sorted.
func (t Trip) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TotalDays is the trip length implied by the stays, counting each flight day
// once.
func (t Trip) TotalDays() int {
	if len(t) == 0 {
		return 0
	}
	total := 0
	for _, c := range t {
		total += c.NumDays
	}
	return total - (len(t) - 1)
}

// Validate rejects non-positive stays and day constraints before day 1.
func (t Trip) Validate() error {
	for name, c := range t {
		if c.NumDays <= 0 {
			return planerr.Newf("validate_trip", planerr.CodeInvalidInput, "city %q has num_days %d", name, c.NumDays)
		}
		for _, d := range c.DayConstraints {
			if d < 1 {
				return planerr.Newf("validate_trip", planerr.CodeInvalidInput, "city %q has day constraint %d", name, d)
			}
		}
	}
	return nil
}
