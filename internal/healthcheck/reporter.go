package healthcheck

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "crmcheck/pkg/strings"
)

// ConsoleReporter prints progress and a summary table for terminal use.
type ConsoleReporter struct {
	out        io.Writer
	verbose    bool
	quiet      bool
	reportPath string

	mu      sync.Mutex
	spinner *spinner.Spinner
	// ReportFile is set once the JSON report has been written.
	ReportFile string
}

// ConsoleOptions configures a ConsoleReporter.
type ConsoleOptions struct {
	Verbose bool
	Quiet   bool
	// ReportPath is the directory the JSON report is written to; empty disables it.
	ReportPath string
}

// NewConsoleReporter returns a reporter writing to out (stdout when nil).
func NewConsoleReporter(out io.Writer, opts ConsoleOptions) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, verbose: opts.Verbose, quiet: opts.Quiet, reportPath: opts.ReportPath}
}

func (r *ConsoleReporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// ReportStart is called when a run begins.
func (r *ConsoleReporter) ReportStart(opts Options) {
	r.printf("🧪 Starting crmcheck health run\n")
	if r.verbose {
		entities := "all"
		if len(opts.Entities) > 0 {
			entities = strings.Join(opts.Entities, ", ")
		}
		r.printf("\n⚙️  Configuration:\n")
		r.printf("   • Entities: %s\n", entities)
		r.printf("   • Realtime: %t\n", opts.Realtime)
		r.printf("   • Fail fast: %t\n", opts.FailFast)
		r.printf("   • Burst size: %d\n", opts.BurstSize)
		if opts.Pace > 0 {
			r.printf("   • Pace: %.1f req/s\n", opts.Pace)
		}
		if len(opts.CustomSuites) > 0 {
			r.printf("   • Custom suites: %d\n", len(opts.CustomSuites))
		}
		r.printf("\n")
	}
}

// ReportSuiteStart is called before an entity suite runs.
func (r *ConsoleReporter) ReportSuiteStart(entity string) {
	r.printf("\n🎯 Suite: %s\n", entity)
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(r.out))
	r.spinner.Suffix = fmt.Sprintf(" Running %s suite...", entity)
	r.spinner.Start()
}

// ReportTestResult prints one line per test. Passing tests are only shown
// in verbose mode.
func (r *ConsoleReporter) ReportTestResult(res TestResult) {
	if res.Status == StatusSuccess && !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.spinner != nil && r.spinner.Active()
	if active {
		r.spinner.Stop()
	}

	r.printf("   %s %-11s %s (%dms)\n", statusSymbol(res.Status), res.Test.Category, res.Test.Name, res.ElapsedMs)
	switch {
	case res.Error != "":
		r.printf("      %s\n", text.FgRed.Sprint(pkgstrings.Truncate(res.Error, pkgstrings.DefaultMessageMaxLen)))
	case res.Message != "" && (r.verbose || res.Status == StatusWarning):
		r.printf("      %s\n", text.FgYellow.Sprint(res.Message))
	}

	if active {
		r.spinner.Start()
	}
}

// ReportSuiteResult prints the suite totals and any leaked records.
func (r *ConsoleReporter) ReportSuiteResult(res SuiteResult) {
	r.stopSpinner()
	s := res.Summary
	r.printf("🏁 %s: %d passed, %d failed, %d warnings of %d (%v)\n",
		res.Entity, s.Passed, s.Failed, s.Warnings, s.Total, res.Duration.Round(time.Millisecond))
	if len(res.Leaked) > 0 {
		r.printf("   %s %s\n", text.FgRed.Sprint("🧹 Leaked:"), strings.Join(res.Leaked, ", "))
	}
}

// ReportRunResult renders the summary tables and saves the JSON report when requested.
func (r *ConsoleReporter) ReportRunResult(res RunResult) {
	r.stopSpinner()
	r.printf("\n🏁 Health Run Complete\n")
	r.printf("⏱️  Duration: %v\n", res.Duration.Round(time.Millisecond))
	r.printf("🆔 Run: %s\n\n", res.RunID)

	t := r.newTable()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SUITE"),
		text.FgHiCyan.Sprint("TOTAL"),
		text.FgHiCyan.Sprint("PASSED"),
		text.FgHiCyan.Sprint("FAILED"),
		text.FgHiCyan.Sprint("WARNINGS"),
		text.FgHiCyan.Sprint("LEAKED"),
	})
	for _, s := range res.Suites {
		t.AppendRow(table.Row{s.Entity, s.Summary.Total, s.Summary.Passed, colorCount(s.Summary.Failed, text.FgRed), colorCount(s.Summary.Warnings, text.FgYellow), colorCount(len(s.Leaked), text.FgRed)})
	}
	t.AppendFooter(table.Row{"TOTAL", res.Summary.Total, res.Summary.Passed, res.Summary.Failed, res.Summary.Warnings, res.LeakCount()})
	t.Render()

	if r.verbose && len(res.Categories) > 0 {
		ct := r.newTable()
		ct.AppendHeader(table.Row{
			text.FgHiCyan.Sprint("CATEGORY"),
			text.FgHiCyan.Sprint("TOTAL"),
			text.FgHiCyan.Sprint("PASSED"),
			text.FgHiCyan.Sprint("FAILED"),
			text.FgHiCyan.Sprint("WARNINGS"),
		})
		for _, c := range Categories {
			s, ok := res.Categories[c]
			if !ok {
				continue
			}
			ct.AppendRow(table.Row{string(c), s.Total, s.Passed, colorCount(s.Failed, text.FgRed), colorCount(s.Warnings, text.FgYellow)})
		}
		ct.Render()
	}

	if res.AuthFailures > 0 {
		r.printf("%s\n", text.FgRed.Sprintf("🔒 %d requests ended in a terminal authentication failure", res.AuthFailures))
	}
	if res.Aborted {
		r.printf("%s\n", text.FgYellow.Sprint("⏹️  Run interrupted before all suites finished"))
	}
	if res.Healthy() {
		r.printf("\n🎉 All tests passed!\n")
	} else {
		r.printf("\n💔 Some tests failed\n")
	}

	if r.reportPath != "" {
		path, err := SaveReport(r.reportPath, res)
		if err != nil {
			r.printf("⚠️  Failed to save detailed report: %v\n", err)
		} else {
			r.ReportFile = path
			r.printf("📄 Detailed report saved to: %s\n", path)
		}
	}
}

func (r *ConsoleReporter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (r *ConsoleReporter) stopSpinner() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

// SaveReport writes res as indented JSON to dir and returns the file path.
func SaveReport(dir string, res RunResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	timestamp := res.StartTime.Format("20060102-150405")
	if res.StartTime.IsZero() {
		timestamp = time.Now().Format("20060102-150405")
	}
	path := filepath.Join(dir, fmt.Sprintf("crmcheck-report-%s.json", timestamp))

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

func statusSymbol(s Status) string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusFailed:
		return "❌"
	case StatusWarning:
		return "⚠️ "
	default:
		return "❓"
	}
}

func colorCount(n int, c text.Color) string {
	if n == 0 {
		return "0"
	}
	return c.Sprint(n)
}
