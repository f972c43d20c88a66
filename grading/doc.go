// Package grading measures plan accuracy over a dataset.
//
// A meeting prediction is correct when its score equals the golden plan's
// score. Both are computed with validate.Score, which stops at the first
// broken rule. A trip prediction is correct when its parsed stays begin with
// every golden stay, in order.
//
// # Reports
//
// A Grader groups results by instance size (number of people or cities) and
// reports per-size and overall accuracy:
//
//	g, err := grading.New(grading.WithSamplesPerBucket(20))
//	if err != nil {
//	    return err
//	}
//	report, err := g.Meeting(ctx, set)
//	fmt.Printf("overall: %.3f\n", report.Accuracy)
//
// # Observability
//
// When configured with WithTracer and WithMeterProvider the grader opens a
// "grading.run" span per run and a "grading.example" span per example, and
// records the grading.examples counter and the grading.accuracy and
// grading.duration histograms. Without them grading runs silently.
package grading
