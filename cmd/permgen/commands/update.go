package commands

import (
	"fmt"
	"log/slog"

	"permgen/lib/refpage"
	"permgen/services/permsync"

	"github.com/spf13/cobra"
)

var (
	updateTarget            string
	updateSource            string
	updateDangerousSource   string
	updateIncludeDeprecated bool
	updateDryRun            bool
	updateLegacy            bool
)

func init() {
	updateCmd.Flags().StringVar(&updateTarget, "target", "", "The Permissions.java to rewrite. (default from config)")
	updateCmd.Flags().StringVar(&updateSource, "source", "", "URL or saved html file of the Manifest.permission reference. (default from config)")
	updateCmd.Flags().StringVar(&updateDangerousSource, "dangerous-source", "", "URL or saved html file to read the dangerous permissions from, when it is not the reference page.")
	updateCmd.Flags().BoolVar(&updateLegacy, "legacy", false, "Read the dangerous permissions from the old permissions guide page.")
	updateCmd.Flags().BoolVar(&updateIncludeDeprecated, "include-deprecated", false, "Keep permissions the reference marks as deprecated.")
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "Print the changes instead of writing them.")
	rootCmd.AddCommand(updateCmd)
}

func updateOptions(cmd *cobra.Command) permsync.Options {
	opts := permsync.Options{
		Target:            config.Target,
		Reference:         config.ReferenceUrl,
		Dangerous:         config.DangerousUrl,
		IncludeDeprecated: includeDeprecated(cmd, updateIncludeDeprecated),
		DryRun:            updateDryRun,
	}
	if updateTarget != "" {
		opts.Target = updateTarget
	}
	if updateSource != "" {
		opts.Reference = updateSource
	}
	if updateLegacy {
		opts.Dangerous = refpage.LegacyGuideURL
	}
	if updateDangerousSource != "" {
		opts.Dangerous = updateDangerousSource
	}
	return opts
}

var updateCmd = &cobra.Command{
	Use:   "update [--target <Permissions.java>] [--source <url|file>] [--dry-run]",
	Short: "Regenerates the listing and dangerous arrays of Permissions.java.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := refpage.NewClient(config.clientOptions())
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := permsync.NewService(client, nil).Run(cmd.Context(), updateOptions(cmd))
		if err != nil {
			return err
		}

		if updateDryRun {
			if !result.Changed {
				fmt.Fprintln(cmd.ErrOrStderr(), "no changes")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), result.Diff)
			return nil
		}

		slog.Info(
			"done",
			"permissions", result.Permissions,
			"dangerous", result.Dangerous,
			"strategy", result.Strategy,
			"written", result.Written,
		)
		return nil
	},
}
