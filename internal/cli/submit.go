package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/grading"
	"github.com/zero-day-ai/itinerary/queue"
)

var submitTimeout time.Duration

type submitSummary struct {
	Kind    string         `json:"kind"`
	Total   int            `json:"total"`
	Correct int            `json:"correct"`
	Errors  int            `json:"errors"`
	Results []queue.Result `json:"results"`
}

var submitCmd = &cobra.Command{
	Use:   "submit <meeting|trip> <dataset>",
	Short: "Grade a dataset on the worker pool",
	Long: `Push every example of a dataset onto the Redis queue of its kind and wait
for the workers to publish all grades.`,
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

		entries, err := loadEntries(args[0], args[1])
		if err != nil {
			return err
		}

		client, err := queue.NewRedisClient(queue.RedisOptions{
			URL:        cfg.Redis.URL,
			PopTimeout: cfg.Redis.GetPopTimeout(),
		})
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := signalContext()
		defer cancel()

		summary, err := submit(ctx, client, args[0], entries, submitTimeout)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 10*time.Minute, "Maximum time to wait for all grades")
}

// loadEntries reads a dataset as queue entries.
func loadEntries(kind, path string) ([]queue.Entry, error) {
	var entries []queue.Entry
	switch kind {
	case grading.KindMeeting:
		set, err := dataset.LoadMeetings(path)
		if err != nil {
			return nil, err
		}
		for _, ex := range set.Examples {
			entries = append(entries, queue.Entry{ID: ex.ID, Example: ex})
		}
	case grading.KindTrip:
		set, err := dataset.LoadTrips(path)
		if err != nil {
			return nil, err
		}
		for _, ex := range set.Examples {
			entries = append(entries, queue.Entry{ID: ex.ID, Example: ex})
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return entries, nil
}

func submit(ctx context.Context, client queue.Client, kind string, entries []queue.Entry, timeout time.Duration) (*submitSummary, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := queue.Submit(ctx, client, kind, entries)
	if err != nil {
		return nil, err
	}

	s := &submitSummary{Kind: kind, Total: len(results), Results: results}
	for _, r := range results {
		switch {
		case r.HasError():
			s.Errors++
		case r.Grade.Correct:
			s.Correct++
		}
	}
	return s, nil
}

func printSummary(w io.Writer, s *submitSummary) {
	accuracy := 0.0
	if s.Total > 0 {
		accuracy = float64(s.Correct) / float64(s.Total)
	}
	PrintLabelValue(w, "Kind", s.Kind)
	PrintLabelValue(w, "Accuracy", fmt.Sprintf("%s (%d/%d)", percent(accuracy), s.Correct, s.Total))
	if s.Errors > 0 {
		PrintLabelValue(w, "Errors", strconv.Itoa(s.Errors))
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		status := "incorrect"
		switch {
		case r.HasError():
			status = "error: " + r.Error
		case r.Grade.Correct:
			status = "correct"
		}
		rows = append(rows, []string{r.Grade.ID, status, r.WorkerID, r.Duration().String()})
	}
	PrintTable(w, []string{"ID", "STATUS", "WORKER", "DURATION"}, rows)
}
