package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// githubRepoSlug is the repository whose releases are checked for updates.
const githubRepoSlug = "loopauth/loopauth"

var errDevelopmentVersion = errors.New("cannot self-update a development version")

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update loopauth to the latest version",
		Long: `Checks for the latest release of loopauth on GitHub and
replaces the running binary if a newer version is found. Release
archives are verified against the published checksums.txt.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current := rootCmd.Version
	// Development builds carry no semantic version to compare against.
	if current == "" || current == "dev" {
		return errDevelopmentVersion
	}

	ctx := context.Background()
	var out io.Writer = io.Discard
	if cmd != nil {
		out = cmd.OutOrStdout()
		if cmd.Context() != nil {
			ctx = cmd.Context()
		}
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	fmt.Fprintf(out, "Checking %s for releases newer than %s...\n", githubRepoSlug, current)
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return fmt.Errorf("failed to detect latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", githubRepoSlug)
	}
	if !latest.GreaterThan(current) {
		fmt.Fprintln(out, text.FgGreen.Sprint("Already up to date."))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	fmt.Fprintf(out, "Updating %s to %s (published %s)\n", exe, latest.Version(), latest.PublishedAt.Format("2006-01-02"))
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Fprintln(out, text.FgGreen.Sprintf("Updated to %s", latest.Version()))
	if latest.ReleaseNotes != "" {
		fmt.Fprintf(out, "\nRelease notes:\n%s\n", latest.ReleaseNotes)
	}
	return nil
}
