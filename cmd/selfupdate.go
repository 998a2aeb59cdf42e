package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// EnvUpdateRepo names the GitHub repository (owner/name) that publishes releases.
const EnvUpdateRepo = "CRMCHECK_UPDATE_REPO"

// releaseRepo is set at build time:
//
//	go build -ldflags "-X crmcheck/cmd.releaseRepo=acme/crmcheck"
var releaseRepo string

var selfUpdateRepo string

func newSelfUpdateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "self-update",
		Short: "Update crmcheck to the latest release",
		Long: `Replaces the running binary with the latest crmcheck release when it is
newer. Releases are looked up in the repository given by --repo, the
` + EnvUpdateRepo + ` environment variable, or the one baked in at build time.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
	c.Flags().StringVar(&selfUpdateRepo, "repo", "", "GitHub repository publishing releases (owner/name)")
	return c
}

// updateRepo picks the release repository: flag, then environment, then build default.
func updateRepo(flag string) (string, error) {
	repo := strings.TrimSpace(flag)
	if repo == "" {
		repo = strings.TrimSpace(os.Getenv(EnvUpdateRepo))
	}
	if repo == "" {
		repo = releaseRepo
	}
	if repo == "" {
		return "", fmt.Errorf("no release repository configured; pass --repo owner/name or set %s", EnvUpdateRepo)
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid release repository %q; want owner/name", repo)
	}
	return repo, nil
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current := rootCmd.Version
	if current == "" || current == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}
	repo, err := updateRepo(selfUpdateRepo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"}})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	ctx := cmd.Context()
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil {
		return fmt.Errorf("failed to look up releases of %s: %w", repo, err)
	}
	if !found {
		return fmt.Errorf("no release of crmcheck found in %s", repo)
	}
	if !latest.GreaterThan(current) {
		fmt.Fprintf(out, "✅ crmcheck %s is up to date\n", current)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	fmt.Fprintf(out, "⬆️  Updating %s from %s to %s (published %s)\n", exe, current, latest.Version(), latest.PublishedAt.Format("2006-01-02"))
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Fprintf(out, "✅ Updated to crmcheck %s\n", latest.Version())
	return nil
}
