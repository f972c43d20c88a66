package refine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/constraint"
	"github.com/zero-day-ai/itinerary/policy"
	"github.com/zero-day-ai/itinerary/travel"
	"github.com/zero-day-ai/itinerary/validate"
)

const (
	goodMeeting = "You start at Marina District at 9:00AM. You travel to Alamo Square in 15 minutes and arrive at 9:15AM. You wait until 2:30PM. You meet Jessica for 75 minutes from 2:30PM to 3:45PM."
	badMeeting  = "You start at Marina District at 9:00AM. You meet Jessica for 75 minutes."

	goodTrip = "Day 1-3: A\nDay 3: Fly from A to B\nDay 3-4: B"
	badTrip  = "Day 1-2: A\nDay 2: Fly from A to B\nDay 2-4: B"
)

// scripted replies with responses in order, repeating the last one.
type scripted struct {
	mu        sync.Mutex
	responses []string
	requests  []Request
	err       error
}

func (s *scripted) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func jessica(t *testing.T) validate.Problem {
	t.Helper()
	m, err := constraint.NewMeetings([]constraint.Person{{
		Name:     "Jessica",
		Location: "Alamo Square",
		Window:   constraint.Window{Start: clock.MustParse("2:30PM"), End: clock.MustParse("8:15PM")},
		Duration: 75,
	}})
	require.NoError(t, err)
	return validate.Problem{
		Meetings: m,
		Start:    constraint.Start{Location: "Marina District", Time: clock.MustParse("9:00AM")},
		Table: travel.Table{
			"Marina District": {"Alamo Square": 15},
			"Alamo Square":    {"Marina District": 16},
		},
	}
}

func tripAB() constraint.Trip {
	return constraint.Trip{
		"A": {NumDays: 3, Flights: []string{"B"}},
		"B": {NumDays: 2, Flights: []string{"A"}},
	}
}

func TestMeetingLoop_ConvergesWithFeedback(t *testing.T) {
	gen := &scripted{responses: []string{
		"SOLUTION: " + badMeeting,
		"SOLUTION: " + goodMeeting,
	}}
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, 2, res.Iterations)
	assert.Empty(t, res.Violations)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, goodMeeting, res.Plan)

	require.Len(t, gen.requests, 2)
	first := gen.requests[0]
	assert.Equal(t, NoPlanYet, first.CurrentPlan)
	assert.Empty(t, first.Feedback)
	assert.Equal(t, DefaultMeetingSteps, first.MaxSteps)
	assert.Equal(t, "SOLUTION:", first.Marker)

	second := gen.requests[1]
	assert.Equal(t, badMeeting, second.CurrentPlan)
	assert.Equal(t,
		"Here is feedback on the best plan:\n"+
			"* Location mismatch for Jessica: Meeting at Marina District but should be at Alamo Square\n"+
			"* Too early for Jessica: Meeting starts at 09:00AM but available from 02:30PM\n"+
			"* Did not meet with: Jessica",
		second.Feedback)
}

func TestMeetingLoop_BudgetExhausted(t *testing.T) {
	gen := &scripted{responses: []string{"SOLUTION: " + badMeeting}}
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)}, WithMaxSteps(3))
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.Violations, 3)
	assert.Len(t, gen.requests, 3)
}

func TestMultiMeetingLoop_PicksFewestViolations(t *testing.T) {
	resp := "Some preamble.\nSOLUTION:\n" + badMeeting + "\n---\n" + goodMeeting + "\n---\n" + badMeeting
	gen := &scripted{responses: []string{resp}}
	loop, err := NewMultiMeeting(gen, MeetingChecker{Problem: jessica(t)})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, goodMeeting, res.Plan)
	assert.Equal(t, DefaultMultiCandidates, gen.requests[0].Candidates)
	assert.Equal(t, DefaultMultiMeetingSteps, gen.requests[0].MaxSteps)
}

func TestTripLoop_Feedback(t *testing.T) {
	gen := &scripted{responses: []string{"PLAN:\n" + badTrip, "PLAN:\n" + goodTrip}}
	loop, err := NewTrip(gen, TripChecker{Trip: tripAB()})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "visit A and B")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, DefaultTripSteps, gen.requests[0].MaxSteps)
	assert.Equal(t, "PLAN:", gen.requests[0].Marker)
	assert.Equal(t,
		"There are errors in the plan, please fix them: City 'A' days mismatch: expected 3, got 2\n*City 'B' days mismatch: expected 2, got 3",
		gen.requests[1].Feedback)
}

func TestTripLoop_RuleLinesStayInPlan(t *testing.T) {
	body := "Here is the trip plan for visiting the 2 European cities for 4 days:\n---\n" + badTrip + "\n---"
	gen := &scripted{responses: []string{"PLAN:\n" + body}}
	loop, err := NewTrip(gen, TripChecker{Trip: tripAB()}, WithMaxSteps(1))
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "visit A and B")
	require.NoError(t, err)
	assert.Equal(t, body, res.Plan)
	assert.Equal(t, []string{
		"City 'A' days mismatch: expected 3, got 2",
		"City 'B' days mismatch: expected 2, got 3",
	}, res.Violations)
}

func TestTripChecker_NoPlan(t *testing.T) {
	v := TripChecker{Trip: tripAB()}.Check("I could not find a plan.")
	assert.Equal(t, []string{NoTripPlan}, v.Violations)
}

func TestLoop_CustomPolicy(t *testing.T) {
	gen := &scripted{responses: []string{"SOLUTION: " + badMeeting}}
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)},
		WithPolicy(policy.MustCompile("violations <= 3")))
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Violations, 3)
}

func TestLoop_GeneratorError(t *testing.T) {
	boom := errors.New("model unavailable")
	loop, err := NewMeeting(&scripted{err: boom}, MeetingChecker{Problem: jessica(t)})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Accepted)
}

func TestLoop_Canceled(t *testing.T) {
	gen := &scripted{responses: []string{"SOLUTION: " + badMeeting}}
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)}, WithRateLimit(1000, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = loop.Run(ctx, "meet Jessica")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.requests)
}

func TestLoop_GeneratorFunc(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		return req.Marker + " " + goodMeeting, nil
	})
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestNew_Invalid(t *testing.T) {
	checker := MeetingChecker{Problem: jessica(t)}
	gen := &scripted{responses: []string{""}}

	_, err := New(nil, checker)
	assert.Error(t, err)
	_, err = New(gen, nil)
	assert.Error(t, err)
	_, err = New(gen, checker, WithMaxSteps(0))
	assert.Error(t, err)
	_, err = New(gen, checker, WithCandidates(0))
	assert.Error(t, err)
}

func TestLoop_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	gen := &scripted{responses: []string{"SOLUTION: " + badMeeting, "SOLUTION: " + goodMeeting}}
	loop, err := NewMeeting(gen, MeetingChecker{Problem: jessica(t)}, WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "meet Jessica")
	require.NoError(t, err)

	names := make(map[string]int)
	for _, s := range recorder.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["refine.run"])
	assert.Equal(t, 2, names["refine.iteration"])
}

func TestRequestPrompt(t *testing.T) {
	single := Request{Task: "meet Jessica", Iteration: 2, MaxSteps: 15, CurrentPlan: NoPlanYet, Feedback: "fix it", Candidates: 1, Marker: "SOLUTION:"}.Prompt()
	assert.True(t, strings.HasPrefix(single, "STEP 2/15"))
	assert.Contains(t, single, "meet Jessica")
	assert.Contains(t, single, NoPlanYet)
	assert.Contains(t, single, "fix it")
	assert.Contains(t, single, "SOLUTION:\n<your plan here>")

	multi := Request{Task: "t", Iteration: 1, MaxSteps: 9, CurrentPlan: NoPlanYet, Candidates: 5, Marker: "SOLUTION:"}.Prompt()
	assert.Contains(t, multi, "5 different plans")
	assert.Contains(t, multi, "---")
}
