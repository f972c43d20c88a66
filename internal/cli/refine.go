package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/config"
	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/grading"
	"github.com/zero-day-ai/itinerary/plan"
	"github.com/zero-day-ai/itinerary/refine"
)

// ResponseSeparator splits recorded generator responses in a replay file.
const ResponseSeparator = "\n===\n"

var (
	refineResponses   string
	refineOut         string
	refineMulti       bool
	refineShowPrompts bool
)

var refineCmd = &cobra.Command{
	Use:   "refine <meeting|trip> <dataset> [id...]",
	Short: "Replay recorded model responses through the refinement loop",
	Long: `Run the refinement loop for the given examples, or for every example when
no id is given, answering each request with the next recorded response.
Responses are separated by a line holding "===". The last response repeats
once they are exhausted.

--responses names one replay file shared by every example, or a directory
holding <id>.txt per example. With --out the dataset is written to that
path with each refined plan stored as the example's prediction, ready for
grade.

Budgets, pacing and the acceptance policy come from the refine section of
the configuration.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := kindArg(cmd, args); err != nil {
			return err
		}
		return cobra.MinimumNArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if refineResponses == "" {
			return fmt.Errorf("--responses is required")
		}

		var prompts io.Writer
		if refineShowPrompts {
			prompts = cmd.ErrOrStderr()
		}
		gens, err := replaySource(refineResponses, prompts)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		tracer, shutdown, err := setupTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx))
		var extra []refine.Option
		if tracer != nil {
			extra = append(extra, refine.WithTracer(tracer))
		}

		outcomes, err := refineDataset(ctx, cfg, args[0], args[1], args[2:], gens, refineMulti, refineOut, extra...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, outcomes)
		}
		for _, o := range outcomes {
			printOutcome(out, o)
		}
		if refineOut != "" {
			PrintSuccess(out, fmt.Sprintf("wrote %s to %s", PrintCount(len(outcomes), "refined plan", "refined plans"), refineOut))
		}
		return nil
	},
}

func init() {
	refineCmd.Flags().StringVar(&refineResponses, "responses", "", "Replay file of responses separated by '===' lines, or a directory of <id>.txt files")
	refineCmd.Flags().StringVar(&refineOut, "out", "", "Write the dataset with refined plans as predictions to this path (.json, .yaml)")
	refineCmd.Flags().BoolVar(&refineMulti, "multi", false, "Ask for several meeting candidates per iteration")
	refineCmd.Flags().BoolVar(&refineShowPrompts, "show-prompts", false, "Print each rendered request to stderr")
}

// refineOutcome is the refinement result of one example.
type refineOutcome struct {
	ID string `json:"id"`
	*refine.Result
}

func printOutcome(w io.Writer, o refineOutcome) {
	PrintLabelValue(w, "Example", o.ID)
	PrintLabelValue(w, "Iterations", fmt.Sprint(o.Iterations))
	PrintLabelValue(w, "Score", fmt.Sprint(o.Score))
	if o.Accepted {
		PrintSuccess(w, "plan accepted")
	} else {
		PrintWarning(w, fmt.Sprintf("plan not accepted: %s", PrintCount(len(o.Violations), "violation", "violations")))
		PrintList(w, o.Violations, 1)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, o.Plan)
	fmt.Fprintln(w)
}

// generatorSource returns the generator answering requests for example id.
type generatorSource func(id string) (refine.Generator, error)

// replaySource reads replays from path: one file shared by every example,
// or a directory holding <id>.txt per example.
func replaySource(path string, prompts io.Writer) (generatorSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read responses: %w", err)
		}
		return func(string) (refine.Generator, error) {
			return newReplay(string(data), prompts), nil
		}, nil
	}
	return func(id string) (refine.Generator, error) {
		data, err := os.ReadFile(filepath.Join(path, id+".txt"))
		if err != nil {
			return nil, fmt.Errorf("failed to read responses for %s: %w", id, err)
		}
		return newReplay(string(data), prompts), nil
	}, nil
}

// refineDataset runs the loop for kind on the examples ids of the dataset
// at path, or on all of them when ids is empty. Each refined plan replaces
// the example's prediction; when out is set the whole dataset is saved
// there. extra options apply after the configured ones.
func refineDataset(ctx context.Context, cfg *config.Config, kind, path string, ids []string, gens generatorSource, multi bool, out string, extra ...refine.Option) ([]refineOutcome, error) {
	base, err := cfg.RefineOptions()
	if err != nil {
		return nil, err
	}
	base = append(base, extra...)

	var outcomes []refineOutcome
	run := func(id, task string, build func(refine.Generator, []refine.Option) (*refine.Loop, error)) (*refine.Result, error) {
		gen, err := gens(id)
		if err != nil {
			return nil, err
		}
		loop, err := build(gen, slices.Clone(base))
		if err != nil {
			return nil, err
		}
		res, err := loop.Run(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("example %s: %w", id, err)
		}
		outcomes = append(outcomes, refineOutcome{ID: id, Result: res})
		return res, nil
	}

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
			res, err := run(ex.ID, ex.Prompt0Shot, func(gen refine.Generator, opts []refine.Option) (*refine.Loop, error) {
				if multi {
					opts = append(opts, refine.WithMaxSteps(cfg.Refine.MultiMeetingSteps), refine.WithCandidates(cfg.Refine.Candidates))
					return refine.NewMultiMeeting(gen, checker, opts...)
				}
				return refine.NewMeeting(gen, checker, append(opts, refine.WithMaxSteps(cfg.Refine.MeetingSteps))...)
			})
			if err != nil {
				return nil, err
			}
			ex.Prediction = plan.MarkerSolution + " " + res.Plan
		}
		if out != "" {
			if err := set.Save(out); err != nil {
				return nil, err
			}
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
			res, err := run(ex.ID, ex.Prompt0Shot, func(gen refine.Generator, opts []refine.Option) (*refine.Loop, error) {
				return refine.NewTrip(gen, checker, append(opts, refine.WithMaxSteps(cfg.Refine.TripSteps))...)
			})
			if err != nil {
				return nil, err
			}
			ex.Prediction = res.Plan
		}
		if out != "" {
			if err := set.Save(out); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return outcomes, nil
}

// replay answers requests with recorded responses in order.
type replay struct {
	responses []string
	next      int
	prompts   io.Writer
}

func newReplay(data string, prompts io.Writer) *replay {
	var responses []string
	for _, r := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), ResponseSeparator) {
		if r = strings.TrimSpace(r); r != "" {
			responses = append(responses, r)
		}
	}
	return &replay{responses: responses, prompts: prompts}
}

func (r *replay) Generate(_ context.Context, req refine.Request) (string, error) {
	if r.prompts != nil {
		fmt.Fprintf(r.prompts, "%s\n", req.Prompt())
	}
	if len(r.responses) == 0 {
		return "", fmt.Errorf("replay file holds no responses")
	}
	i := r.next
	if i >= len(r.responses) {
		i = len(r.responses) - 1
	}
	r.next++
	return r.responses[i], nil
}
