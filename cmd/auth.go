package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crmcheck/internal/config"
	"crmcheck/pkg/logging"
)

var authCreds credentialFlags

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect and manage crmcheck credentials",
	Long: `Inspect and manage the credentials crmcheck sends.

Requests carry exactly one credential: the API key when one is set,
otherwise the bearer token. The API key can be persisted in the
configuration directory; bearer tokens are never written to disk.

Examples:
  crmcheck auth status                 # Show which credential will be used
  crmcheck auth status -o json         # Same, as JSON
  crmcheck auth apikey set <key>       # Persist an API key
  crmcheck auth apikey clear           # Remove the persisted API key`,
}

// authAPIKeyCmd groups the persisted key operations.
var authAPIKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the persisted API key",
}

var authAPIKeySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Persist an API key for later runs",
	Long: `Writes the API key to the configuration directory with owner-only
permissions. Running checks pick the new key up without a restart.`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthAPIKeySet,
}

var authAPIKeyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the persisted API key",
	Args:  cobra.NoArgs,
	RunE:  runAuthAPIKeyClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authAPIKeyCmd)
	authAPIKeyCmd.AddCommand(authAPIKeySetCmd)
	authAPIKeyCmd.AddCommand(authAPIKeyClearCmd)
}

func runAuthAPIKeySet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	store := config.NewKeyStore(rootConfigPath)
	if err := store.Save(key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ API key %s saved to %s\n", logging.Redact(key), store.Path())
	return nil
}

func runAuthAPIKeyClear(cmd *cobra.Command, args []string) error {
	store := config.NewKeyStore(rootConfigPath)
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Persisted API key removed")
	return nil
}
