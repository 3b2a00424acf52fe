// Package commands implements the alarmclock command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/alarmclock/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
// Running it bare is the same as running "alarmclock start".
var rootCmd = &cobra.Command{
	Use:   "alarmclock [start]",
	Short: "Alarm Clock service",
	Long: `Alarm Clock runs a single application instance under a lifecycle
supervisor. The instance is stopped gracefully on SIGINT or SIGTERM and the
process exits with 0 on a clean shutdown or 1 when teardown fails.

Running alarmclock without a command is the same as "alarmclock start".
Any other command is ignored.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runRoot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// runLifecycle is the run path selected by Dispatch. Tests replace it.
var runLifecycle = startAlarmClock

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
	return rootCmd.ExecuteContext(context.Background())
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/alarmclock/config.yaml)")

	rootCmd.AddCommand(startCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

func runRoot(cmd *cobra.Command, args []string) error {
	if action := Dispatch(args); action != ActionRun {
		logger.Debug("Ignoring unrecognized command", logger.KeyCommand, args[0], logger.KeyAction, action.String())
		return nil
	}
	return runLifecycle(cmd.Context())
}
