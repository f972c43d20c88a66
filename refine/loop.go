package refine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/policy"
)

// Default budgets.
const (
	DefaultMeetingSteps      = 15
	DefaultMultiMeetingSteps = 9
	DefaultMultiCandidates   = 5
	DefaultTripSteps         = 7
)

// NoPlanYet is sent as the current plan before any candidate exists.
const NoPlanYet = "No plan created yet."

// Request is one call to a Generator.
type Request struct {
	// Task is the problem statement.
	Task string

	// Iteration is 1-based; MaxSteps is the loop budget.
	Iteration int
	MaxSteps  int

	// CurrentPlan is the best plan so far, or NoPlanYet.
	CurrentPlan string

	// Feedback describes the violations of CurrentPlan. Empty on the first
	// iteration.
	Feedback string

	// Candidates is how many alternative plans the response should hold,
	// separated by plan.CandidateSeparator.
	Candidates int

	// Marker must precede the plans in the response.
	Marker string
}

// Generator proposes plans. Implementations wrap a language model client.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Result is the outcome of a refinement run.
type Result struct {
	Verdict

	// Accepted is true when the policy accepted Plan.
	Accepted bool `json:"accepted"`

	// Iterations is the number of generator calls made.
	Iterations int `json:"iterations"`

	// Response is the last raw generator response.
	Response string `json:"response"`
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxSteps sets the iteration budget.
func WithMaxSteps(n int) Option {
	return func(l *Loop) {
		l.maxSteps = n
	}
}

// WithCandidates sets how many plans are requested per iteration.
func WithCandidates(n int) Option {
	return func(l *Loop) {
		l.candidates = n
	}
}

// WithPolicy sets the acceptance policy. Defaults to policy.Default.
func WithPolicy(p *policy.Policy) Option {
	return func(l *Loop) {
		l.policy = p
	}
}

// WithRateLimit paces generator calls to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(l *Loop) {
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLimiter shares an existing limiter, e.g. across loops of one worker.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(l *Loop) {
		l.limiter = limiter
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithTracer enables a span per run and per iteration.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) {
		l.tracer = tracer
	}
}

// Loop asks a Generator for plans until the policy accepts one or the budget
// is spent. A Loop holds no per-run state and may run concurrently.
type Loop struct {
	gen        Generator
	checker    Checker
	maxSteps   int
	candidates int
	policy     *policy.Policy
	limiter    *rate.Limiter
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates a Loop. Without options it makes DefaultMeetingSteps
// single-candidate iterations, unpaced, with the default policy.
func New(gen Generator, checker Checker, opts ...Option) (*Loop, error) {
	if gen == nil || checker == nil {
		return nil, fmt.Errorf("refine loop needs a generator and a checker")
	}
	l := &Loop{
		gen:        gen,
		checker:    checker,
		maxSteps:   DefaultMeetingSteps,
		candidates: 1,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxSteps < 1 {
		return nil, fmt.Errorf("max steps must be positive, got %d", l.maxSteps)
	}
	if l.candidates < 1 {
		return nil, fmt.Errorf("candidates must be positive, got %d", l.candidates)
	}
	if l.policy == nil {
		p, err := policy.Compile(policy.Default)
		if err != nil {
			return nil, err
		}
		l.policy = p
	}
	return l, nil
}

// NewMeeting creates a single-candidate meeting loop.
func NewMeeting(gen Generator, checker MeetingChecker, opts ...Option) (*Loop, error) {
	return New(gen, checker, append([]Option{WithMaxSteps(DefaultMeetingSteps)}, opts...)...)
}

// NewMultiMeeting creates a meeting loop that asks for several candidates
// per iteration.
func NewMultiMeeting(gen Generator, checker MeetingChecker, opts ...Option) (*Loop, error) {
	defaults := []Option{WithMaxSteps(DefaultMultiMeetingSteps), WithCandidates(DefaultMultiCandidates)}
	return New(gen, checker, append(defaults, opts...)...)
}

// NewTrip creates a trip loop.
func NewTrip(gen Generator, checker TripChecker, opts ...Option) (*Loop, error) {
	return New(gen, checker, append([]Option{WithMaxSteps(DefaultTripSteps)}, opts...)...)
}

// Run refines a plan for task. The best candidate of each response, the one
// with fewest violations, replaces the current plan and its violations
// become the feedback of the next request. A generator error ends the run
// and is returned with the result so far.
func (l *Loop) Run(ctx context.Context, task string) (*Result, error) {
	start := time.Now()
	res := &Result{}

	var span trace.Span
	if l.tracer != nil {
		ctx, span = l.tracer.Start(ctx, "refine.run")
		span.SetAttributes(
			attribute.Int("refine.max_steps", l.maxSteps),
			attribute.Int("refine.candidates", l.candidates),
			attribute.String("refine.policy", l.policy.String()),
		)
		defer span.End()
	}

	feedback := ""
	for i := 1; i <= l.maxSteps; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return l.finish(span, res, start, fmt.Errorf("wait for generator: %w", err))
		}

		current := res.Plan
		if current == "" {
			current = NoPlanYet
		}
		req := Request{
			Task:        task,
			Iteration:   i,
			MaxSteps:    l.maxSteps,
			CurrentPlan: current,
			Feedback:    feedback,
			Candidates:  l.candidates,
			Marker:      l.checker.Marker(),
		}

		resp, err := l.generate(ctx, req)
		res.Iterations = i
		if err != nil {
			return l.finish(span, res, start, fmt.Errorf("iteration %d: %w", i, err))
		}
		res.Response = resp

		best, ok := l.best(resp)
		if !ok {
			l.logger.Warn("response holds no candidate", "iteration", i)
			continue
		}
		res.Verdict = best

		accepted, err := l.policy.Accept(policy.Input{
			Violations: len(best.Violations),
			Iteration:  i,
			Score:      best.Score,
		})
		if err != nil {
			l.logger.Warn("policy evaluation failed", "iteration", i, "error", err)
		}
		l.logger.Debug("iteration checked", "iteration", i, "violations", len(best.Violations), "accepted", accepted)
		if accepted {
			res.Accepted = true
			break
		}
		feedback = l.checker.Feedback(best.Violations)
	}

	return l.finish(span, res, start, nil)
}

func (l *Loop) generate(ctx context.Context, req Request) (string, error) {
	if l.tracer == nil {
		return l.gen.Generate(ctx, req)
	}
	ctx, span := l.tracer.Start(ctx, "refine.iteration", trace.WithAttributes(
		attribute.Int("refine.iteration", req.Iteration),
	))
	defer span.End()

	resp, err := l.gen.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

// best checks every candidate of resp and returns the one with fewest
// violations; the earliest wins a tie.
func (l *Loop) best(resp string) (Verdict, bool) {
	var (
		best  Verdict
		found bool
	)
	// A single plan may itself use "---" as a rule line, so the body is only
	// split when several candidates were asked for.
	var candidates []string
	if l.candidates > 1 {
		candidates = plan.ExtractCandidates(resp, l.checker.Marker())
	} else if body := plan.ExtractBody(resp, l.checker.Marker()); body != "" {
		candidates = []string{body}
	}
	for _, c := range candidates {
		v := l.checker.Check(c)
		if !found || len(v.Violations) < len(best.Violations) {
			best, found = v, true
		}
	}
	return best, found
}

func (l *Loop) finish(span trace.Span, res *Result, start time.Time, err error) (*Result, error) {
	if span != nil {
		span.SetAttributes(
			attribute.Int("refine.iterations", res.Iterations),
			attribute.Int("refine.violations", len(res.Violations)),
			attribute.Bool("refine.accepted", res.Accepted),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	l.logger.Info("refinement finished",
		"iterations", res.Iterations,
		"violations", len(res.Violations),
		"accepted", res.Accepted,
		"duration", time.Since(start),
	)
	return res, err
}
