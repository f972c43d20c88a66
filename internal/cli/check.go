package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/grading"
	"github.com/zero-day-ai/itinerary/refine"
)

var checkPlanFile string

type checkResult struct {
	ID string `json:"id"`
	refine.Verdict
}

var checkCmd = &cobra.Command{
	Use:   "check <meeting|trip> <dataset> [id...]",
	Short: "List every constraint violation of stored predictions",
	Long: `Check the prediction of each example, or of the given ids, and list all
violations. With --plan the plan text is read from a file instead and
checked against a single example.

Exits non-zero when any plan has violations.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := kindArg(cmd, args); err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("requires a dataset path")
		}
		if checkPlanFile != "" && len(args) != 3 {
			return fmt.Errorf("--plan needs exactly one example id")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, path, ids := args[0], args[1], args[2:]

		var override string
		if checkPlanFile != "" {
			data, err := os.ReadFile(checkPlanFile)
			if err != nil {
				return fmt.Errorf("failed to read plan: %w", err)
			}
			override = string(data)
		}

		results, err := checkDataset(kind, path, ids, override)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if len(r.Violations) > 0 {
				failed++
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if len(r.Violations) == 0 {
					PrintSuccess(out, r.ID)
					continue
				}
				PrintWarning(out, fmt.Sprintf("%s: %s", r.ID, PrintCount(len(r.Violations), "violation", "violations")))
				PrintList(out, r.Violations, 1)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d plans have violations", failed, len(results))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkPlanFile, "plan", "", "Check the plan in this file instead of the stored prediction")
}

// checkDataset checks the selected examples of the file at path. A
// non-empty override replaces the stored prediction.
func checkDataset(kind, path string, ids []string, override string) ([]checkResult, error) {
	pick := func(text string) string {
		if override != "" {
			return override
		}
		return text
	}

	var results []checkResult
	switch kind {
	case grading.KindMeeting:
		set, err := dataset.LoadMeetings(path)
		if err != nil {
			return nil, err
		}
		examples, err := selectExamples(set.Examples, ids, set.Get)
		if err != nil {
			return nil, err
		}
		for _, ex := range examples {
			p, err := ex.Problem()
			if err != nil {
				return nil, fmt.Errorf("example %s: %w", ex.ID, err)
			}
			checker := refine.MeetingChecker{Problem: p}
			results = append(results, checkResult{ID: ex.ID, Verdict: checker.Check(pick(ex.Prediction))})
		}
	case grading.KindTrip:
		set, err := dataset.LoadTrips(path)
		if err != nil {
			return nil, err
		}
		examples, err := selectExamples(set.Examples, ids, set.Get)
		if err != nil {
			return nil, err
		}
		for _, ex := range examples {
			checker := refine.TripChecker{Trip: ex.Constraints}
			results = append(results, checkResult{ID: ex.ID, Verdict: checker.Check(pick(ex.Prediction))})
		}
	}
	return results, nil
}

// selectExamples returns all examples when ids is empty, otherwise the
// examples with ids in order.
func selectExamples[T any](all []*T, ids []string, get func(string) *T) ([]*T, error) {
	if len(ids) == 0 {
		return all, nil
	}
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		ex := get(id)
		if ex == nil {
			return nil, fmt.Errorf("no example with id %q", id)
		}
		out = append(out, ex)
	}
	return out, nil
}
