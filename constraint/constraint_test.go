package constraint

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/planerr"
)

func rawList(t *testing.T, s string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestMeetingsFromTuples(t *testing.T) {
	raw := rawList(t, `[
		["Marina District", "9:00AM"],
		["Jessica", "Alamo Square", "2:30PM to 8:15PM", 75],
		["Ronald", "Fisherman's Wharf", "3:15PM to 6:30PM", 60]
	]`)

	start, m, err := MeetingsFromTuples(raw)
	require.NoError(t, err)

	assert.Equal(t, Start{Location: "Marina District", Time: clock.MustParse("9:00AM")}, start)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"Jessica", "Ronald"}, m.Names())

	jessica, err := m.Person("Jessica")
	require.NoError(t, err)
	assert.Equal(t, "Alamo Square", jessica.Location)
	assert.Equal(t, 75, jessica.Duration)
	assert.Equal(t, clock.MustParse("2:30PM"), jessica.Window.Start)
	assert.Equal(t, clock.MustParse("8:15PM"), jessica.Window.End)
}

func TestMeetingsFromTuples_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"empty", `[]`, planerr.CodeInvalidInput},
		{"bad start", `[["Marina District"]]`, planerr.CodeInvalidInput},
		{"bad start time", `[["Marina District", "25:00AM"]]`, planerr.CodeParse},
		{"short person", `[["A", "9:00AM"], ["Jessica", "B", "2:30PM to 8:15PM"]]`, planerr.CodeInvalidInput},
		{"bad window", `[["A", "9:00AM"], ["Jessica", "B", "2:30PM until 8:15PM", 75]]`, planerr.CodeParse},
		{"duration not a number", `[["A", "9:00AM"], ["Jessica", "B", "2:30PM to 8:15PM", "75"]]`, planerr.CodeInvalidInput},
		{"duplicate", `[["A", "9:00AM"], ["J", "B", "2:30PM to 8:15PM", 75], ["J", "C", "2:30PM to 8:15PM", 75]]`, planerr.CodeInvalidInput},
		{"inverted window", `[["A", "9:00AM"], ["J", "B", "8:15PM to 2:30PM", 75]]`, planerr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := MeetingsFromTuples(rawList(t, tt.raw))
			require.Error(t, err)
			assert.Equal(t, tt.code, planerr.CodeOf(err))
		})
	}
}

func TestMeetings_UnknownPerson(t *testing.T) {
	m, err := NewMeetings(nil)
	require.NoError(t, err)

	_, err = m.Person("Nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, planerr.ErrUnknownEntity))
	assert.False(t, m.Has("Nobody"))
}

func TestMeetings_NamesIsCopy(t *testing.T) {
	m, err := NewMeetings([]Person{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)

	names := m.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, m.Names())
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: clock.MustParse("2:30PM"), End: clock.MustParse("8:15PM")}

	assert.True(t, w.Contains(clock.MustParse("2:30PM"), clock.MustParse("8:15PM")))
	assert.False(t, w.Contains(clock.MustParse("2:29PM"), clock.MustParse("3:00PM")))
	assert.False(t, w.Contains(clock.MustParse("8:00PM"), clock.MustParse("8:16PM")))
	assert.Equal(t, "02:30PM to 08:15PM", w.String())
}

func TestTrip(t *testing.T) {
	var trip Trip
	require.NoError(t, json.Unmarshal([]byte(`{
		"Amsterdam": {"num_days": 5, "flights": ["Berlin", "Rome"], "day_constraints": []},
		"Berlin": {"num_days": 5, "flights": ["Amsterdam"], "day_constraints": []},
		"Rome": {"num_days": 2, "flights": ["Amsterdam"], "day_constraints": [9, 10]}
	}`), &trip))

	require.NoError(t, trip.Validate())
	assert.Equal(t, []string{"Amsterdam", "Berlin", "Rome"}, trip.Names())
	assert.Equal(t, 10, trip.TotalDays())

	rome, err := trip.City("Rome")
	require.NoError(t, err)
	assert.True(t, rome.CanFlyTo("Amsterdam"))
	assert.False(t, rome.CanFlyTo("Berlin"))
	assert.True(t, rome.AllowsStartDay(9))
	assert.False(t, rome.AllowsStartDay(8))

	berlin, err := trip.City("Berlin")
	require.NoError(t, err)
	assert.True(t, berlin.AllowsStartDay(42))

	_, err = trip.City("Paris")
	assert.True(t, errors.Is(err, planerr.ErrUnknownEntity))
}

func TestTrip_Validate(t *testing.T) {
	assert.Error(t, Trip{"A": {NumDays: 0}}.Validate())
	assert.Error(t, Trip{"A": {NumDays: 2, DayConstraints: []int{0}}}.Validate())
	assert.Equal(t, 0, Trip{}.TotalDays())
}
