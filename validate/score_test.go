package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/planerr"
)

func TestScore(t *testing.T) {
	p := threeFriendsProblem(t)

	tests := []struct {
		name      string
		sentences []string
		want      int
	}{
		{
			name:      "empty",
			sentences: nil,
			want:      0,
		},
		{
			name: "stops at first bad meeting",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You meet Jessica for 75 minutes",
				"You wait until 2:30PM",
				"You travel to Fisherman's Wharf in 19 minutes",
				"You wait until 3:15PM",
				"You meet Ronald for 60 minutes",
			},
			want: 0,
		},
		{
			name: "stated duration is ignored",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You wait until 2:30PM",
				"You meet Jessica for 10 minutes",
				"You travel to Fisherman's Wharf in 19 minutes",
				"You meet Ronald for 60 minutes",
			},
			want: 2,
		},
		{
			name: "partial score before backwards wait",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You wait until 2:30PM",
				"You meet Jessica for 75 minutes",
				"You wait until 3:00PM",
				"You travel to Fisherman's Wharf in 19 minutes",
				"You meet Ronald for 60 minutes",
			},
			want: 1,
		},
		{
			name: "double booking stops",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You wait until 2:30PM",
				"You meet Jessica for 75 minutes",
				"You meet Jessica for 75 minutes",
				"You travel to Fisherman's Wharf in 19 minutes",
				"You meet Ronald for 60 minutes",
			},
			want: 1,
		},
		{
			name: "unknown route stops",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You wait until 2:30PM",
				"You meet Jessica for 75 minutes",
				"You travel to Mars in 1 minutes",
				"You meet Ronald for 60 minutes",
			},
			want: 1,
		},
		{
			name: "unknown sentence stops",
			sentences: []string{
				"You travel to Alamo Square in 15 minutes",
				"You wait until 2:30PM",
				"You meet Jessica for 75 minutes",
				"You relax",
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(steps(tt.sentences...), p))
		})
	}
}

func TestScoreWithReason(t *testing.T) {
	p := jessicaProblem(t)

	n, err := ScoreWithReason(steps(
		"You start at Marina District at 9:00AM",
		"You meet Jessica for 75 minutes",
	), p)
	assert.Equal(t, 0, n)
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Index)
	assert.True(t, errors.Is(err, planerr.ErrViolation))

	n, err = ScoreWithReason(steps("You travel to Nowhere in 3 minutes"), p)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, planerr.ErrUnknownRoute))

	n, err = ScoreWithReason(steps("You meet Bob for 3 minutes"), p)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, planerr.ErrUnknownEntity))

	n, err = ScoreWithReason(plan.ParseText(threeFriendsPlan), threeFriendsProblem(t))
	assert.Equal(t, 3, n)
	assert.NoError(t, err)
}

// A plan with a recoverable bad meeting followed by valid ones is judged
// differently by the two modes.
func TestModesDiverge(t *testing.T) {
	p := threeFriendsProblem(t)
	s := steps(
		"You travel to Alamo Square in 15 minutes",
		"You meet Jessica for 75 minutes",
		"You wait until 2:30PM",
		"You meet Jessica for 75 minutes",
	)

	assert.Equal(t, 0, Score(s, p))
	assert.Equal(t, []string{
		"Too early for Jessica: Meeting starts at 09:15AM but available from 02:30PM",
		"Did not meet with: Mary, Ronald",
	}, Violations(s, p))
}

func TestScoreRecords(t *testing.T) {
	p := threeFriendsProblem(t)

	records := []plan.Record{
		{Location: "Marina District", PersonName: "N/A", StartTime: "9:00AM"},
		{Location: "Alamo Square", PersonName: "N/A", StartTime: "9:15AM"},
		{Location: "Alamo Square", PersonName: "Jessica", StartTime: "2:30PM"},
		{Location: "Fisherman's Wharf", PersonName: "Ronald", StartTime: "4:04PM"},
		{Location: "Union Square", PersonName: "Mary", StartTime: "7:00PM"},
	}
	assert.Equal(t, 3, ScoreRecords(records, p))

	tooEarly := []plan.Record{
		{Location: "Marina District", PersonName: "N/A", StartTime: "9:00AM"},
		{Location: "Alamo Square", PersonName: "Jessica", StartTime: "2:30PM"},
		{Location: "Fisherman's Wharf", PersonName: "Ronald", StartTime: "4:00PM"},
		{Location: "Union Square", PersonName: "Mary", StartTime: "7:00PM"},
	}
	assert.Equal(t, 1, ScoreRecords(tooEarly, p))

	sameLocation := []plan.Record{
		{Location: "Marina District", PersonName: "N/A", StartTime: "9:00AM"},
		{Location: "", PersonName: "N/A", StartTime: "9:00AM"},
	}
	assert.Equal(t, 0, ScoreRecords(sameLocation, p))
}

func TestScore_NilMeetings(t *testing.T) {
	_, err := ScoreWithReason(nil, Problem{})
	assert.True(t, errors.Is(err, planerr.ErrInvalidInput))
	assert.Equal(t, 0, Score(nil, Problem{}))
}
