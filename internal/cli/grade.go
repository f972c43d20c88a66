package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/grading"
)

var samplesPerBucket int

var gradeCmd = &cobra.Command{
	Use:   "grade <meeting|trip> <dataset>",
	Short: "Grade the stored predictions of a dataset",
	Long: `Grade every prediction of a dataset and report overall accuracy and the
accuracy per problem size (people for meetings, cities for trips).`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := kindArg(cmd, args); err != nil {
			return err
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		opts := []grading.Option{grading.WithSamplesPerBucket(samplesPerBucket)}
		tracer, shutdown, err := setupTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx))
		if tracer != nil {
			opts = append(opts, grading.WithTracer(tracer))
		}

		g, err := grading.New(opts...)
		if err != nil {
			return err
		}

		var report *grading.Report
		switch args[0] {
		case grading.KindMeeting:
			set, err := dataset.LoadMeetings(args[1])
			if err != nil {
				return err
			}
			report, err = g.Meeting(ctx, set)
			if err != nil {
				return err
			}
		case grading.KindTrip:
			set, err := dataset.LoadTrips(args[1])
			if err != nil {
				return err
			}
			report, err = g.Trip(ctx, set)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	gradeCmd.Flags().IntVar(&samplesPerBucket, "samples-per-bucket", 0, "Fixed accuracy divisor per size bucket (0 uses each bucket's count)")
}

func printReport(w io.Writer, r *grading.Report) {
	PrintLabelValue(w, "Run", r.RunID)
	PrintLabelValue(w, "Kind", r.Kind)
	PrintLabelValue(w, "Accuracy", fmt.Sprintf("%s (%d/%d)", percent(r.Accuracy), r.Correct, r.Total))
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		rows = append(rows, []string{
			strconv.Itoa(b.Size),
			strconv.Itoa(b.Samples),
			strconv.Itoa(b.Correct),
			percent(b.Accuracy),
		})
	}
	PrintTable(w, []string{"SIZE", "SAMPLES", "CORRECT", "ACCURACY"}, rows)
}
