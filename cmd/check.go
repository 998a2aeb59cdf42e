package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crmcheck/internal/healthcheck"
	"crmcheck/internal/metrics"
	"crmcheck/internal/realtime"
)

var (
	checkEntities     []string
	checkRealtime     bool
	checkFailFast     bool
	checkOutput       string
	checkReportPath   string
	checkMetricsFile  string
	checkCustomSuites string
	checkCustomOnly   bool
	checkPace         float64
	checkTimeout      time.Duration
	checkVerbose      bool
	checkQuiet        bool
	checkCreds        credentialFlags
)

// completeEntityFlag provides shell completion for --entity.
func completeEntityFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return healthcheck.EntityNames(), cobra.ShellCompDirectiveNoFileComp
}

// checkCmd runs the health suites.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the health suites against the CRM backend",
	Long: `Runs the ordered health suite for each selected entity:

  Critical       list, create, get by id, update
  Search         status filter, search, pagination, combined filters
  ErrorHandling  missing records, missing fields, delete without archive
  EdgeCase       special characters, large values, empty optional fields
  WidgetData     escrow widget sections
  Performance    large pagination, concurrent burst, response time variance
  Realtime       create and update event correlation (--realtime)
  Workflow       archive, delete, batch delete, verify deletion

Every record a suite creates is archived, deleted and verified gone; anything
left behind is reported as leaked.

Exit codes:
  0  all tests passed and nothing leaked
  1  failed tests, leaked records or an error
  2  a request ended in a terminal authentication failure

Examples:
  crmcheck check
  crmcheck check --entity escrows --entity leads
  crmcheck check --realtime --fail-fast
  crmcheck check -o json --report ./reports --metrics-file /var/lib/node_exporter/crmcheck.prom
  crmcheck check --custom-suites ./suites --custom-only`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := healthcheck.ValidateOutputFormat(checkOutput); err != nil {
			return err
		}
		if checkPace < 0 {
			return fmt.Errorf("--pace must not be negative")
		}
		return nil
	},
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringSliceVarP(&checkEntities, "entity", "e", nil, "Entities to check (repeatable; default from suite.entities)")
	checkCmd.Flags().BoolVar(&checkRealtime, "realtime", false, "Run the realtime event correlation tests (requires realtime.url)")
	checkCmd.Flags().BoolVar(&checkFailFast, "fail-fast", false, "Stop after the first suite with a failed test")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", healthcheck.OutputTable, "Output format (table, json, yaml)")
	checkCmd.Flags().StringVar(&checkReportPath, "report", "", "Directory to save a detailed JSON report in")
	checkCmd.Flags().StringVar(&checkMetricsFile, "metrics-file", "", "Write Prometheus metrics for the run to this file")
	checkCmd.Flags().StringVar(&checkCustomSuites, "custom-suites", "", "File or directory of custom YAML suites (default from suite.customSuitesDir)")
	checkCmd.Flags().BoolVar(&checkCustomOnly, "custom-only", false, "Run only the custom suites")
	checkCmd.Flags().Float64Var(&checkPace, "pace", 0, "Requests per second between tests (overrides suite.pace)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 15*time.Minute, "Overall run timeout")
	checkCmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "Show passing tests and per-category totals")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Disable the progress spinner")
	checkCmd.Flags().StringVar(&checkCreds.token, "token", "", "Bearer token for this run (not persisted)")
	checkCmd.Flags().StringVar(&checkCreds.apiKey, "api-key", "", "API key for this run (not persisted; wins over --token)")

	_ = checkCmd.RegisterFlagCompletionFunc("entity", completeEntityFlag)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	env, err := loadEnvironment(checkCreds)
	if err != nil {
		return err
	}
	env.watchKeyStore(ctx)

	opts := env.runOptions()
	opts.Realtime = checkRealtime
	opts.FailFast = checkFailFast
	opts.SkipBuiltin = checkCustomOnly
	if len(checkEntities) > 0 {
		opts.Entities = checkEntities
	}
	if cmd.Flags().Changed("pace") {
		opts.Pace = checkPace
	}
	if opts.CustomSuites, err = env.loadCustomSuites(checkCustomSuites); err != nil {
		return err
	}
	if checkCustomOnly && len(opts.CustomSuites) == 0 {
		return fmt.Errorf("--custom-only needs --custom-suites or suite.customSuitesDir")
	}

	var channel realtime.Channel
	if checkRealtime {
		ws, err := env.connectRealtime(ctx)
		if err != nil {
			return err
		}
		if ws != nil {
			defer ws.Close()
			channel = ws
		}
	}

	out := cmd.OutOrStdout()
	var reporter healthcheck.Reporter
	if checkOutput == healthcheck.OutputTable {
		reporter = healthcheck.NewConsoleReporter(out, healthcheck.ConsoleOptions{
			Verbose:    checkVerbose,
			Quiet:      checkQuiet,
			ReportPath: checkReportPath,
		})
	} else {
		// Structured output owns stdout; progress goes nowhere.
		reporter = healthcheck.NewStructuredReporter()
	}

	res, err := env.newOrchestrator(channel, reporter).Run(ctx, opts)
	if err != nil {
		return err
	}

	if checkOutput != healthcheck.OutputTable {
		if err := healthcheck.WriteResult(out, checkOutput, res); err != nil {
			return err
		}
		if checkReportPath != "" {
			if _, err := healthcheck.SaveReport(checkReportPath, *res); err != nil {
				return err
			}
		}
	}
	if checkMetricsFile != "" {
		if err := metrics.WriteTextfile(checkMetricsFile, res); err != nil {
			return err
		}
	}
	return runError(res)
}

// runError maps a finished run onto the error that selects the exit code.
func runError(res *healthcheck.RunResult) error {
	if res.AuthFailures > 0 {
		return &AuthFailedError{Requests: res.AuthFailures}
	}
	if !res.Healthy() {
		if res.Aborted && res.Summary.Failed == 0 && res.LeakCount() == 0 {
			return fmt.Errorf("health run interrupted")
		}
		return &RunFailedError{Failed: res.Summary.Failed, Leaked: res.LeakCount()}
	}
	return nil
}
