package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/config"
	"github.com/zero-day-ai/itinerary/grading"
)

var (
	// Global flags
	configPath string
	envFiles   []string
	jsonOutput bool
)

// rootCmd is the root command for plancheck.
var rootCmd = &cobra.Command{
	Use:     "plancheck",
	Version: "dev",
	Short:   "Validate and grade meeting and trip itineraries",
	Long: `plancheck checks model-written itineraries against their constraints.

It validates meeting schedules and multi-city trip plans, grades whole
datasets, replays refinement runs and runs distributed grading workers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file or directory holding itinerary.yaml")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before ITINERARY_* overrides")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddGroup(&cobra.Group{ID: "offline", Title: "Offline:"})
	rootCmd.AddGroup(&cobra.Group{ID: "distributed", Title: "Distributed:"})

	checkCmd.GroupID = "offline"
	gradeCmd.GroupID = "offline"
	refineCmd.GroupID = "offline"
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(refineCmd)

	submitCmd.GroupID = "distributed"
	workerCmd.GroupID = "distributed"
	workersCmd.GroupID = "distributed"
	doctorCmd.GroupID = "distributed"
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(doctorCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the plancheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config and --env-file and installs the configured
// logger as the slog default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Logger())
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func kindArg(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a kind: %s or %s", grading.KindMeeting, grading.KindTrip)
	}
	if args[0] != grading.KindMeeting && args[0] != grading.KindTrip {
		return fmt.Errorf("unknown kind %q: want %s or %s", args[0], grading.KindMeeting, grading.KindTrip)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
