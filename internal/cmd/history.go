package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/npmwatch/npmwatch/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the watch history of tracked packages",
	Long: `Packages checked with --track remember the latest version seen. The next
tracked check compares against it when no known version is given.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked packages, most recently checked first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, _, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListWatchEntries(cmd.Context(), limit)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatHistory(entries)
		if err != nil {
			return err
		}
		return writeRendered(outPath, rendered)
	},
}

var historyForgetCmd = &cobra.Command{
	Use:   "forget <package>...",
	Short: "Remove packages from the watch history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		out := cmd.OutOrStdout()
		for _, arg := range args {
			name, _, err := parsePackageArg(arg)
			if err != nil {
				return err
			}
			removed, err := db.DeleteWatchEntry(cmd.Context(), name)
			if err != nil {
				return err
			}
			if removed {
				_, _ = fmt.Fprintf(out, "Forgot %s\n", name)
			} else {
				_, _ = fmt.Fprintf(out, "%s is not tracked\n", name)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyForgetCmd)
	rootCmd.AddCommand(historyCmd)

	addOutputFlags(historyListCmd, false)
	historyListCmd.Flags().Int("limit", 0, "Show at most this many entries (0 for all)")
}
