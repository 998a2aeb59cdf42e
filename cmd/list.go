package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"crmcheck/internal/healthcheck"
)

var (
	listEntities     []string
	listRealtime     bool
	listOutputFormat string
	listCustomSuites string
)

// listCmd prints the declared test cases without touching the backend.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the test cases each suite runs",
	Long: `Lists the test cases of each suite in execution order. Ids that only
exist once a suite runs are shown as :id.

Examples:
  crmcheck list
  crmcheck list --entity escrows --realtime
  crmcheck list --custom-suites ./suites -o yaml`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return healthcheck.ValidateOutputFormat(listOutputFormat)
	},
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSliceVarP(&listEntities, "entity", "e", nil, "Entities to list (repeatable; default all)")
	listCmd.Flags().BoolVar(&listRealtime, "realtime", false, "Include the realtime correlation tests")
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", healthcheck.OutputTable, "Output format (table, json, yaml)")
	listCmd.Flags().StringVar(&listCustomSuites, "custom-suites", "", "Also list the custom YAML suites in this file or directory")

	_ = listCmd.RegisterFlagCompletionFunc("entity", completeEntityFlag)
}

// listedCase is one row of the listing.
type listedCase struct {
	Suite    string               `json:"suite"`
	Name     string               `json:"name"`
	Category healthcheck.Category `json:"category"`
	Request  string               `json:"request"`
	Policy   healthcheck.Policy   `json:"policy"`
}

func runList(cmd *cobra.Command, args []string) error {
	specs, err := healthcheck.ResolveEntities(listEntities)
	if err != nil {
		return err
	}

	stamp := healthcheck.NewStamp(time.Now())
	var rows []listedCase
	for _, spec := range specs {
		for _, tc := range healthcheck.Plan(spec, stamp, listRealtime) {
			rows = append(rows, newListedCase(spec.Name, tc))
		}
	}
	if listCustomSuites != "" {
		suites, err := healthcheck.LoadCustomSuites(listCustomSuites)
		if err != nil {
			return err
		}
		for _, s := range suites {
			for _, tc := range s.Tests {
				rows = append(rows, newListedCase(s.Name, tc))
			}
		}
	}
	return writeListing(cmd.OutOrStdout(), listOutputFormat, rows)
}

func newListedCase(suite string, tc healthcheck.TestCase) listedCase {
	return listedCase{
		Suite:    suite,
		Name:     tc.Name,
		Category: tc.Category,
		Request:  healthcheck.PlanText(tc),
		Policy:   tc.EffectivePolicy(),
	}
}

func writeListing(w io.Writer, format string, rows []listedCase) error {
	switch strings.ToLower(format) {
	case healthcheck.OutputJSON:
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode listing: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case healthcheck.OutputYAML:
		data, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to encode listing: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("SUITE"),
		text.FgHiCyan.Sprint("CATEGORY"),
		text.FgHiCyan.Sprint("TEST"),
		text.FgHiCyan.Sprint("REQUEST"),
		text.FgHiCyan.Sprint("EXPECTS"),
	})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Suite, string(r.Category), r.Name, r.Request, string(r.Policy)})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d tests", len(rows)), "", ""})
	t.Render()
	return nil
}
