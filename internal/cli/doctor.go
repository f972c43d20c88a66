package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/config"
	"github.com/zero-day-ai/itinerary/health"
)

type namedCheck struct {
	Name string `json:"name"`
	health.Status
}

var doctorCmd = &cobra.Command{
	Use:   "doctor [file...]",
	Short: "Check that Redis, etcd and the given files are reachable",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		checks := preflight(ctx, cfg, args)
		statuses := make([]health.Status, len(checks))
		for i, c := range checks {
			statuses[i] = c.Status
		}
		overall := health.Combine(statuses...)

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := writeJSON(out, checks); err != nil {
				return err
			}
		} else {
			printChecks(out, checks)
		}
		if overall.IsUnhealthy() {
			return fmt.Errorf("%s", overall.Message)
		}
		return nil
	},
}

// preflight checks the dependencies named by cfg plus files.
func preflight(ctx context.Context, cfg *config.Config, files []string) []namedCheck {
	checks := []namedCheck{{Name: "redis", Status: health.RedisCheck(ctx, cfg.Redis.URL)}}
	if len(cfg.Registry.Endpoints) > 0 {
		checks = append(checks, namedCheck{Name: "etcd", Status: health.QuorumCheck(ctx, cfg.Registry.Endpoints)})
	}
	if configPath != "" {
		checks = append(checks, namedCheck{Name: "config", Status: health.FileCheck(configPath)})
	}
	for _, f := range files {
		checks = append(checks, namedCheck{Name: "file", Status: health.FileCheck(f)})
	}
	return checks
}

func printChecks(w io.Writer, checks []namedCheck) {
	for _, c := range checks {
		msg := fmt.Sprintf("%s: %s", c.Name, c.Message)
		switch {
		case c.IsHealthy():
			PrintSuccess(w, msg)
		case c.IsDegraded():
			PrintWarning(w, msg)
		default:
			_, _ = errorColor.Fprintf(w, "✗ %s\n", msg)
		}
	}
}
