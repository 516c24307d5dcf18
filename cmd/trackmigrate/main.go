package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/steveyegge/trackmigrate/internal/config"
	"github.com/steveyegge/trackmigrate/internal/debug"
	"github.com/steveyegge/trackmigrate/internal/httpx"
	"github.com/steveyegge/trackmigrate/internal/telemetry"

	// Source adapters register themselves with the tracker registry.
	_ "github.com/steveyegge/trackmigrate/internal/asana"
	_ "github.com/steveyegge/trackmigrate/internal/jira"
)

var (
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger *slog.Logger
)

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "migrate", Title: "Migration:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "trackmigrate",
	Short: "trackmigrate - move Jira and Asana projects into Yandex Tracker",
	Long: `Migrates projects, issues, comments, attachments, links and followers from
Jira or Asana into Yandex Tracker, and rewrites user references between a
Yandex 360 organization and a Yandex Cloud organization.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(currentVersion().String())
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()
		applyRetryPolicy()
		if err := telemetry.Init(rootCtx, telemetryOptions()); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			WarnError("telemetry flush: %v", err)
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package
// and installs a logger in the configured log.format as the slog default.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
	logger = debug.NewLogger(os.Stderr, config.GetString("log.format"))
	slog.SetDefault(logger)
}

// applyRetryPolicy bounds how long REST clients retry 429 and 5xx responses.
func applyRetryPolicy() {
	maxElapsed := config.GetDuration("http.retry_max_elapsed")
	if maxElapsed <= 0 {
		return
	}
	httpx.DefaultBackOff = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = maxElapsed
		return bo
	}
}

func telemetryOptions() telemetry.Options {
	return telemetry.Options{
		Enabled:     config.GetBool("telemetry.enabled"),
		Stdout:      config.GetBool("telemetry.stdout"),
		Endpoint:    config.GetString("telemetry.endpoint"),
		ServiceName: "trackmigrate",
		Version:     Version,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
