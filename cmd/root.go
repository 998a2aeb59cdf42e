package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crmcheck/internal/config"
	"crmcheck/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates a healthy run.
	ExitCodeSuccess = 0
	// ExitCodeError indicates failed tests, leaked records or a general error.
	ExitCodeError = 1
	// ExitCodeAuthFailed indicates a request ended in a terminal authentication failure.
	ExitCodeAuthFailed = 2
)

// Persistent flags shared by every subcommand.
var (
	rootConfigPath string
	rootEnvFile    string
	rootLogLevel   string
	rootLogFormat  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "crmcheck",
	Short: "Health checks for the real-estate CRM API",
	Long: `crmcheck drives ordered CRUD, error handling, performance, widget and
realtime scenarios against a live CRM backend for escrows, listings,
clients, appointments and leads. Everything a run creates is archived,
deleted and verified gone, or reported as leaked.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(rootLogLevel)
		if err != nil {
			return err
		}
		format, err := logging.ParseFormat(rootLogFormat)
		if err != nil {
			return err
		}
		logging.Init(level, format, os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "crmcheck version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// RunFailedError reports a run that finished with failures or leaks.
type RunFailedError struct {
	Failed int
	Leaked int
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("health run failed: %d failed tests, %d leaked records", e.Failed, e.Leaked)
}

// AuthFailedError reports a run in which authentication could not be recovered.
type AuthFailedError struct {
	Requests int
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("authentication failed for %d requests; set a valid token or api key", e.Requests)
}

// getExitCode determines the exit code based on the error type.
func getExitCode(err error) int {
	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

func defaultConfigPath() string {
	dir, err := config.DefaultConfigDir()
	if err != nil {
		return ".crmcheck"
	}
	return dir
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", defaultConfigPath(), "Configuration directory holding config.yaml and the persisted api key")
	rootCmd.PersistentFlags().StringVar(&rootEnvFile, "env-file", ".env", "Environment file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "text", "Log line format (text, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
