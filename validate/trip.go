package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/plan"
)

// CheckTrip checks stays, in visiting order, against trip and returns every
// violation. Day counting starts at 1; each stay after the first begins on
// the flight day that ended the previous one. Reachability uses the outbound
// flights of the previous city only.
func CheckTrip(trip constraint.Trip, stays []plan.Stay) []string {
	var out []string
	day := 1

	for i, stay := range stays {
		city, err := trip.City(stay.City)
		if err != nil {
			out = append(out, fmt.Sprintf("City '%s' not found in constraints.", stay.City))
			day += stay.Days
			continue
		}

		if stay.Days != city.NumDays {
			out = append(out, fmt.Sprintf("City '%s' days mismatch: expected %d, got %d",
				stay.City, city.NumDays, stay.Days))
		}

		if !city.AllowsStartDay(day) {
			out = append(out, fmt.Sprintf("City '%s' start day %d not in allowed days %s",
				stay.City, day, formatDays(city.DayConstraints)))
		}

		if i > 0 {
			prevName := stays[i-1].City
			// An unknown previous city was already reported above.
			if prev, err := trip.City(prevName); err == nil && !prev.CanFlyTo(stay.City) {
				out = append(out, fmt.Sprintf("City '%s' is not reachable from '%s'. Allowed flights from '%s' are [%s].",
					stay.City, prevName, prevName, strings.Join(prev.Flights, ", ")))
			}
		}

		day += stay.Days - 1
	}

	return out
}

func formatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
