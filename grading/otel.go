package grading

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelMetrics holds the metric instruments of a Grader.
type otelMetrics struct {
	// examplesCounter counts graded examples by kind and correctness
	examplesCounter metric.Int64Counter

	// accuracyHistogram records the overall accuracy of each run (0.0 to 1.0)
	accuracyHistogram metric.Float64Histogram

	// durationHistogram records run duration in milliseconds
	durationHistogram metric.Float64Histogram
}

func (g *Grader) initOTelMetrics() (*otelMetrics, error) {
	if g.meter == nil {
		return nil, nil
	}

	m := &otelMetrics{}
	var err error

	m.examplesCounter, err = g.meter.Int64Counter(
		"grading.examples",
		metric.WithDescription("Number of graded examples"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create examples counter: %w", err)
	}

	m.accuracyHistogram, err = g.meter.Float64Histogram(
		"grading.accuracy",
		metric.WithDescription("Overall accuracy of a grading run from 0.0 to 1.0"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accuracy histogram: %w", err)
	}

	m.durationHistogram, err = g.meter.Float64Histogram(
		"grading.duration",
		metric.WithDescription("Grading run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return m, nil
}

// startRun opens the run span. The returned func closes it with the final
// report and records run metrics.
func (g *Grader) startRun(ctx context.Context, r *Report) (context.Context, func(*Report)) {
	var span trace.Span
	if g.tracer != nil {
		ctx, span = g.tracer.Start(ctx, "grading.run")
		span.SetAttributes(
			attribute.String("grading.run_id", r.RunID),
			attribute.String("grading.kind", r.Kind),
		)
	}

	return ctx, func(r *Report) {
		if span != nil {
			span.SetAttributes(
				attribute.Int("grading.total", r.Total),
				attribute.Int("grading.correct", r.Correct),
				attribute.Float64("grading.accuracy", r.Accuracy),
			)
			span.SetStatus(codes.Ok, "")
			span.End()
		}
		if g.metrics != nil && r.Total > 0 {
			opts := metric.WithAttributes(attribute.String("grading.kind", r.Kind))
			g.metrics.accuracyHistogram.Record(ctx, r.Accuracy, opts)
			g.metrics.durationHistogram.Record(ctx, float64(r.Duration.Milliseconds()), opts)
		}
	}
}

// recordExample emits the per-example span and counter.
func (g *Grader) recordExample(ctx context.Context, kind string, gr Grade) {
	if g.tracer != nil {
		_, span := g.tracer.Start(ctx, "grading.example")
		span.SetAttributes(
			attribute.String("example.id", gr.ID),
			attribute.Int("example.size", gr.Size),
			attribute.Bool("example.correct", gr.Correct),
			attribute.Int("example.violations", len(gr.Violations)),
		)
		if kind == KindMeeting {
			span.SetAttributes(
				attribute.Int("example.score", gr.Score),
				attribute.Int("example.golden_score", gr.GoldenScore),
			)
		}
		if gr.Correct {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, "prediction does not match golden plan")
		}
		span.End()
	}

	if g.metrics != nil {
		g.metrics.examplesCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("grading.kind", kind),
			attribute.Bool("example.correct", gr.Correct),
		))
	}
}
