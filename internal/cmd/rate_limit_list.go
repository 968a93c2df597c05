package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/npmwatch/npmwatch/internal/core/store"
	"github.com/npmwatch/npmwatch/internal/output"
)

var (
	rateLimitListOutput string
	rateLimitListOut    string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		cfg, err := currentConfig(cmd.Context())
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{Prefix: strings.TrimSpace(rateLimitListPrefix)}
		if query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := openSink(rateLimitListOut)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		return writeRateLimitList(format, sink.writer, rateLimitViews(cfg, entries))
	},
}

func writeRateLimitList(format output.Format, w io.Writer, views []rateLimitView) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	lines := []string{"Rate Limits", ""}
	if len(views) == 0 {
		lines = append(lines, "(no stored rate limit state)")
	}
	for _, view := range views {
		backoff := "-"
		if view.BackoffUntil != nil {
			backoff = view.BackoffUntil.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("%s: %d/%d per %s backoff_until=%s",
			view.Endpoint, view.RequestCount, view.Budget, view.Window, backoff))
	}

	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOut, "out", "", "Write output to a file (default stdout)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List endpoints with matching prefix")
}
