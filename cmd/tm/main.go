package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmill/taskmill/internal/config"
	"github.com/taskmill/taskmill/internal/lockfile"
	"github.com/taskmill/taskmill/internal/telemetry"
	"github.com/taskmill/taskmill/internal/types"
	"github.com/taskmill/taskmill/internal/ui"
)

// Command groups for organized help output.
const (
	GroupCore  = "core"
	GroupSetup = "setup"
)

// Exit codes. Anything unclassified exits 1.
const (
	exitError  = 1 // partial sync, degraded content, unexpected failure
	exitConfig = 2 // missing or contradictory configuration
	exitLocked = 3 // another run holds the cache lock
)

var (
	cfgFile     string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool

	// Signal-aware context for graceful cancellation. A sync interrupted by
	// Ctrl-C persists everything fetched so far and resumes next run.
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "tm - incremental sync and reporting for a Notion task database",
	Long: `taskmill mirrors a Notion task database into a local cache and turns it
into actionable summaries: what needs attention now, what shipped this
week, and where work is stagnating.

Syncs are incremental. Only tasks edited since the last run are fetched;
everything else is served from the cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Handle --version flag on the root command
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(versionLine())
			return
		}
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
}

func init() {
	// Assigned here rather than in the composite literal: the closure refers
	// to rootCmd, which the compiler rejects as an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(cfgFile); err != nil {
			return err
		}
		if f := rootCmd.PersistentFlags().Lookup("cache-dir"); f != nil {
			if err := config.BindPFlag(config.KeyCacheDir, f); err != nil {
				return err
			}
		}
		applyConfigOverrides(cmd)
		if noColorFlag || jsonOutput {
			ui.SetColor(false)
		}
		if err := telemetry.Init(rootCtx, "taskmill", Version); err != nil {
			warnf("telemetry init: %v", err)
		}
		return nil
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCore, Title: "Sync & Reports:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default "+config.DefaultConfigFile()+")")
	pf.String("cache-dir", "", "Cache directory for snapshots (default .taskmill)")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	pf.BoolVar(&noColorFlag, "no-color", false, "Disable styled output")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// applyConfigOverrides fills flag-bound globals from config for flags not set
// on the command line. Priority: flags > env > config file > defaults.
func applyConfigOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool(config.KeyJSON)
	}
	if !cmd.Flags().Changed("verbose") {
		verboseFlag = config.GetBool(config.KeyVerbose)
	}
	if !cmd.Flags().Changed("quiet") {
		quietFlag = config.GetBool(config.KeyQuiet)
	}
	if !cmd.Flags().Changed("no-color") {
		noColorFlag = config.GetBool(config.KeyNoColor)
	}
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
}

// exitCode classifies an error from a command run. Configuration problems and
// lock contention get distinct codes so wrappers can tell "fix your setup"
// and "try again later" apart from real failures.
func exitCode(err error) int {
	var cfgErr *types.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.Is(err, lockfile.ErrLockBusy):
		return exitLocked
	default:
		return exitError
	}
}

func printError(err error) {
	if jsonOutput {
		outputJSONError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ui.FailIcon(), err)

	var cfgErr *types.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(os.Stderr, ui.Muted("  hint: run 'tm init' to set up credentials, or 'tm doctor' to diagnose"))
	}
	if errors.Is(err, lockfile.ErrLockBusy) {
		fmt.Fprintln(os.Stderr, ui.Muted("  hint: another tm run is active; wait for it or remove a stale lock file"))
	}
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.Execute()
	rootCancel()
	// PersistentPostRun is skipped on command errors; Shutdown is idempotent.
	shutdownTelemetry()
	if err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
}
