package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/itinerary/dataset"
)

// Kinds of report.
const (
	KindMeeting = "meeting"
	KindTrip    = "trip"
)

// Bucket is the accuracy of examples of one size.
type Bucket struct {
	Size     int     `json:"size"`
	Samples  int     `json:"samples"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Report is the result of grading a dataset.
type Report struct {
	RunID    string        `json:"run_id"`
	Kind     string        `json:"kind"`
	Total    int           `json:"total"`
	Correct  int           `json:"correct"`
	Accuracy float64       `json:"accuracy"`
	Buckets  []Bucket      `json:"buckets"`
	Grades   []Grade       `json:"grades"`
	Duration time.Duration `json:"duration"`
}

// Option configures a Grader.
type Option func(*Grader)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Grader) {
		g.logger = logger
	}
}

// WithTracer enables spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Grader) {
		g.tracer = tracer
	}
}

// WithMeterProvider enables metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(g *Grader) {
		if mp != nil {
			g.meter = mp.Meter("github.com/zero-day-ai/itinerary/grading")
		}
	}
}

// WithSamplesPerBucket fixes the divisor of per-size accuracy. By default
// each bucket is divided by the number of examples it holds.
func WithSamplesPerBucket(n int) Option {
	return func(g *Grader) {
		g.samplesPerBucket = n
	}
}

// Grader grades datasets.
type Grader struct {
	logger           *slog.Logger
	tracer           trace.Tracer
	meter            metric.Meter
	metrics          *otelMetrics
	samplesPerBucket int
}

// New creates a Grader.
func New(opts ...Option) (*Grader, error) {
	g := &Grader{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.samplesPerBucket < 0 {
		return nil, fmt.Errorf("samples per bucket must not be negative, got %d", g.samplesPerBucket)
	}
	m, err := g.initOTelMetrics()
	if err != nil {
		return nil, err
	}
	g.metrics = m
	return g, nil
}

// Meeting grades every example of set.
func (g *Grader) Meeting(ctx context.Context, set *dataset.MeetingSet) (*Report, error) {
	return g.run(ctx, KindMeeting, len(set.Examples), func(i int) (Grade, error) {
		return GradeMeeting(set.Examples[i])
	})
}

// Trip grades every example of set.
func (g *Grader) Trip(ctx context.Context, set *dataset.TripSet) (*Report, error) {
	return g.run(ctx, KindTrip, len(set.Examples), func(i int) (Grade, error) {
		return GradeTrip(set.Examples[i])
	})
}

func (g *Grader) run(ctx context.Context, kind string, n int, grade func(int) (Grade, error)) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:  uuid.NewString(),
		Kind:   kind,
		Grades: make([]Grade, 0, n),
	}

	ctx, end := g.startRun(ctx, report)
	defer func() { end(report) }()

	g.logger.Info("grading started", "run_id", report.RunID, "kind", kind, "examples", n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("grading canceled after %d examples: %w", i, err)
		}
		gr, err := grade(i)
		if err != nil {
			return nil, fmt.Errorf("grade example %d: %w", i, err)
		}
		g.recordExample(ctx, kind, gr)
		if gr.Reason != "" {
			g.logger.Debug("prediction stopped early", "run_id", report.RunID, "example", gr.ID, "reason", gr.Reason)
		}
		report.Grades = append(report.Grades, gr)
	}

	report.summarize(g.samplesPerBucket)
	report.Duration = time.Since(start)

	g.logger.Info("grading finished",
		"run_id", report.RunID,
		"kind", kind,
		"accuracy", report.Accuracy,
		"correct", report.Correct,
		"total", report.Total,
		"duration", report.Duration,
	)
	return report, nil
}

// summarize fills totals and buckets from Grades.
func (r *Report) summarize(samplesPerBucket int) {
	bySize := make(map[int]*Bucket)
	r.Total = len(r.Grades)
	r.Correct = 0
	for _, gr := range r.Grades {
		b, ok := bySize[gr.Size]
		if !ok {
			b = &Bucket{Size: gr.Size}
			bySize[gr.Size] = b
		}
		b.Samples++
		if gr.Correct {
			b.Correct++
			r.Correct++
		}
	}

	r.Buckets = make([]Bucket, 0, len(bySize))
	for _, b := range bySize {
		div := b.Samples
		if samplesPerBucket > 0 {
			div = samplesPerBucket
		}
		b.Accuracy = float64(b.Correct) / float64(div)
		r.Buckets = append(r.Buckets, *b)
	}
	sort.Slice(r.Buckets, func(i, j int) bool { return r.Buckets[i].Size < r.Buckets[j].Size })

	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
}
