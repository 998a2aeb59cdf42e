package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"crmcheck/internal/healthcheck"
	"crmcheck/pkg/auth"
)

var authStatusOutput string

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credential requests will carry",
	Long: `Shows the base URL, the winning credential scheme, where each
credential came from and how expired bearer tokens are refreshed. Secrets
are never printed in full.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return healthcheck.ValidateOutputFormat(authStatusOutput)
	},
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().StringVarP(&authStatusOutput, "output", "o", healthcheck.OutputTable, "Output format (table, json, yaml)")
	authStatusCmd.Flags().StringVar(&authCreds.token, "token", "", "Bearer token to evaluate")
	authStatusCmd.Flags().StringVar(&authCreds.apiKey, "api-key", "", "API key to evaluate")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(authCreds)
	if err != nil {
		return err
	}
	return writeAuthStatus(cmd.OutOrStdout(), authStatusOutput, env.status())
}

func writeAuthStatus(w io.Writer, format string, st auth.StatusResponse) error {
	switch strings.ToLower(format) {
	case healthcheck.OutputJSON:
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case healthcheck.OutputYAML:
		data, err := yaml.Marshal(st)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	fmt.Fprintln(w, "CRM API")
	fmt.Fprintf(w, "  Endpoint:  %s\n", st.BaseURL)
	fmt.Fprintf(w, "  Scheme:    %s\n", schemeLabel(st.Scheme))
	fmt.Fprintf(w, "  API key:   %s\n", credentialLabel(st.APIKey))
	fmt.Fprintf(w, "  Token:     %s\n", credentialLabel(st.BearerToken))
	if st.Refresh.Kind != "" {
		fmt.Fprintf(w, "  Refresh:   %s via %s (coalesced: %t)\n", st.Refresh.Kind, st.Refresh.Endpoint, st.Refresh.Coalesced)
	}
	return nil
}

func schemeLabel(scheme string) string {
	if scheme == auth.SchemeNone {
		return text.FgYellow.Sprint("none (requests are unauthenticated)")
	}
	return text.FgGreen.Sprint(scheme)
}

func credentialLabel(c auth.CredentialStatus) string {
	if !c.Present {
		return text.Faint.Sprint("not set")
	}
	label := fmt.Sprintf("%s (from %s)", c.Preview, c.Source)
	if c.ExpiresAt != nil {
		label += fmt.Sprintf(", expires in %s", time.Until(*c.ExpiresAt).Round(time.Second))
	}
	return label
}
