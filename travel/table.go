// Package travel holds the directed travel-time table between named
// locations of a meeting-planning instance.
package travel

import (
	"sort"

	"github.com/zero-day-ai/itinerary/planerr"
)

// Table maps origin to destination to travel minutes. It decodes directly
// from the dist_matrix object of a problem instance. Routes are directional:
// Table["A"]["B"] says nothing about B to A.
type Table map[string]map[string]int

// Minutes returns the travel time from origin to destination.
func (t Table) Minutes(origin, destination string) (int, error) {
	row, ok := t[origin]
	if !ok {
		return 0, planerr.UnknownRoute(origin, destination)
	}
	m, ok := row[destination]
	if !ok {
		return 0, planerr.UnknownRoute(origin, destination)
	}
	return m, nil
}

// Locations returns every origin in the table, sorted.
func (t Table) Locations() []string {
	out := make([]string, 0, len(t))
	for loc := range t {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Validate rejects negative travel times.
func (t Table) Validate() error {
	for origin, row := range t {
		for dest, m := range row {
			if m < 0 {
				return planerr.Newf("validate_table", planerr.CodeInvalidInput,
					"negative travel time %d from %q to %q", m, origin, dest)
			}
		}
	}
	return nil
}
