package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npmwatch/npmwatch/internal/config"
	"github.com/npmwatch/npmwatch/internal/core/store"
	"github.com/npmwatch/npmwatch/internal/core/watch"
	"github.com/npmwatch/npmwatch/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check <package[@known-version]>...",
	Short: "Check packages for new releases",
	Long: `Check one or more npm packages against the registry and report whether the
latest release differs from the known version.

Scoped packages are written as @scope/name or @scope/name@1.2.3.`,
	Example: `  npmwatch check n8n@1.0.0
  npmwatch check @angular/core@17.0.0 react --continue-on-fail
  npmwatch check left-pad --track -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addWatchFlags(checkCmd)
	addOutputFlags(checkCmd, false)
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("track", false, "Fill missing known versions from, and record results to, the watch history")
	cmd.Flags().Bool("continue-on-fail", false, "Report failed lookups as error records instead of stopping")
	cmd.Flags().Bool("rate-limit", false, "Pace registry lookups with the stored per-host budgets")
}

// runOptions are the per-run switches shared by check, batch and serve.
type runOptions struct {
	Track          bool
	ContinueOnFail bool
	RateLimit      bool
}

// watchOptions resolves --track, --continue-on-fail and --rate-limit, falling
// back to the config when a flag is not set.
func watchOptions(cmd *cobra.Command, cfg *config.Config) (runOptions, error) {
	opts := runOptions{
		Track:          cfg.Watch.Track,
		ContinueOnFail: cfg.Watch.ContinueOnFail,
		RateLimit:      cfg.RateLimitEnabled(),
	}
	flags := []struct {
		name  string
		value *bool
	}{
		{"track", &opts.Track},
		{"continue-on-fail", &opts.ContinueOnFail},
		{"rate-limit", &opts.RateLimit},
	}
	for _, flag := range flags {
		if !cmd.Flags().Changed(flag.name) {
			continue
		}
		value, err := cmd.Flags().GetBool(flag.name)
		if err != nil {
			return runOptions{}, err
		}
		*flag.value = value
	}
	return opts, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	items, err := itemsFromArgs(args)
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, _, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}

	cfg, err := currentConfig(ctx)
	if err != nil {
		return err
	}
	opts, err := watchOptions(cmd, cfg)
	if err != nil {
		return err
	}

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return runItems(cmd, cfg, db, items, opts, format, outPath, "check")
}

// runItems executes one run over items and renders its records. An aborted
// run still renders what was emitted and returns an *exitError.
func runItems(cmd *cobra.Command, cfg *config.Config, db *store.Store, items []watch.Item, opts runOptions, format output.Format, outPath string, source string) error {
	ctx := cmd.Context()
	node := buildNode(cfg, db, opts)
	host := watch.NewItemsHost(items, opts.ContinueOnFail)

	result := execute(ctx, node, host, source)

	rendered, err := output.NewFormatter(format).FormatRecords(host.Records)
	if err != nil {
		return err
	}
	if err := writeRendered(outPath, rendered); err != nil {
		return err
	}

	if result.Err != nil {
		envelope, code := runFailure(ctx, result)
		return &exitError{code: code, msg: "Watch run failed", err: envelope}
	}
	return nil
}

func itemsFromArgs(args []string) ([]watch.Item, error) {
	items := make([]watch.Item, 0, len(args))
	for _, arg := range args {
		name, known, err := parsePackageArg(arg)
		if err != nil {
			return nil, err
		}
		items = append(items, watch.Item{
			watch.ParamPackageName:  name,
			watch.ParamKnownVersion: known,
		})
	}
	return items, nil
}

// parsePackageArg splits "name@version" into its parts. A leading "@" marks
// a scope and is part of the name.
func parsePackageArg(arg string) (name string, known string, err error) {
	value := strings.TrimSpace(arg)
	if value == "" {
		return "", "", errors.New("package name must not be empty")
	}

	search := value
	offset := 0
	if strings.HasPrefix(value, "@") {
		search = value[1:]
		offset = 1
	}

	if idx := strings.LastIndex(search, "@"); idx >= 0 {
		name = value[:idx+offset]
		known = strings.TrimSpace(value[idx+offset+1:])
	} else {
		name = value
	}

	if name == "" || name == "@" {
		return "", "", fmt.Errorf("invalid package %q", arg)
	}
	if strings.HasPrefix(name, "@") && !strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid scoped package %q: expected @scope/name", arg)
	}
	return name, known, nil
}
