package plan

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	dayRangePattern = regexp.MustCompile(`\d+-\d+`)
	flightPattern   = regexp.MustCompile(`.*Day (\d+).*from ([\p{L}\p{N}_]+) to ([\p{L}\p{N}_]+)`)
	totalPattern    = regexp.MustCompile(`European cities for (\d+) days`)
)

// Visit is a "Day a-b" range.
type Visit struct {
	From int
	To   int
}

// Flight is a "Day d: Fly from X to Y" line.
type Flight struct {
	Day  int
	From string
	To   string
}

// Stay is a reconstructed (city, days) pair. Flight days count toward both
// the city left and the city reached.
type Stay struct {
	City string `json:"city"`
	Days int    `json:"days"`
}

// TripPlan is the syntactic content of a trip response.
type TripPlan struct {
	// TotalDays is the stated trip length, 0 when the response does not state it.
	TotalDays int
	Visits    []Visit
	Flights   []Flight
}

// ParseTripResponse scans raw line by line for the stated total, day ranges
// and flights. Scanning stops at the day range ending on the stated total, so
// alternative plans appended after the chosen one are ignored. Lines matching
// none of the patterns are skipped.
func ParseTripResponse(raw string) TripPlan {
	var tp TripPlan
	for _, line := range strings.Split(raw, "\n") {
		if m := totalPattern.FindStringSubmatch(line); m != nil {
			tp.TotalDays, _ = strconv.Atoi(m[1])
		}

		if r := dayRangePattern.FindString(line); r != "" {
			from, to, _ := strings.Cut(r, "-")
			v := Visit{}
			v.From, _ = strconv.Atoi(from)
			v.To, _ = strconv.Atoi(to)
			tp.Visits = append(tp.Visits, v)
			if tp.TotalDays > 0 && v.To == tp.TotalDays {
				break
			}
		}

		if m := flightPattern.FindStringSubmatch(line); m != nil {
			day, _ := strconv.Atoi(m[1])
			tp.Flights = append(tp.Flights, Flight{Day: day, From: m[2], To: m[3]})
		}
	}
	return tp
}

// Cities returns the visiting order implied by the flights: the origin of
// the first flight followed by every destination.
func (tp TripPlan) Cities() []string {
	if len(tp.Flights) == 0 {
		return nil
	}
	cities := []string{tp.Flights[0].From}
	for _, f := range tp.Flights {
		cities = append(cities, f.To)
	}
	return cities
}

// Stays reconstructs the (city, days) sequence. It is empty when the
// response has no day ranges or no flights.
func (tp TripPlan) Stays() []Stay {
	if len(tp.Visits) == 0 || len(tp.Flights) == 0 {
		return nil
	}
	days := make([]int, len(tp.Flights))
	for i, f := range tp.Flights {
		days[i] = f.Day
	}
	return ReconstructStays(tp.Cities(), days, tp.Visits[len(tp.Visits)-1].To)
}

// ReconstructStays derives stay lengths from the visiting order, the flight
// days and the last day of the plan: with day 1 prepended and lastDay
// appended to flightDays, each stay is the consecutive difference plus one.
// cities must have one more element than flightDays.
func ReconstructStays(cities []string, flightDays []int, lastDay int) []Stay {
	if len(cities) == 0 || len(cities) != len(flightDays)+1 {
		return nil
	}
	bounds := make([]int, 0, len(flightDays)+2)
	bounds = append(bounds, 1)
	bounds = append(bounds, flightDays...)
	bounds = append(bounds, lastDay)

	stays := make([]Stay, len(cities))
	for i, c := range cities {
		stays[i] = Stay{City: c, Days: bounds[i+1] - bounds[i] + 1}
	}
	return stays
}

// SplitField splits a "**"-separated dataset field such as the cities or
// durations of a trip example.
func SplitField(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "**")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
