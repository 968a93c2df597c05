package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/npmwatch/npmwatch/internal/core/watch"
	"github.com/npmwatch/npmwatch/internal/observability"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Run watch items from workflow files",
	Long: `Run the items of one or more workflow files. Each file is one execution.

A workflow file is YAML, JSON or TOML (chosen by extension, or --input-format
for stdin given as "-"):

  continueOnFail: true
  items:
    - packageName: n8n
      knownVersion: 1.0.0
    - packages:
        packageEntry:
          - packageName: react
            knownVersion: 18.2.0
          - packageName: "@angular/core"

Unquoted YAML numbers inside items keep their text, so knownVersion: 1.10
stays "1.10". TOML has no such form: quote versions there.

Flags override the file's continueOnFail and track settings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addWatchFlags(batchCmd)
	addOutputFlags(batchCmd, true)
	batchCmd.Flags().String("input-format", "", "Workflow format when it cannot be inferred: yaml, json, toml")
}

// workflowFile is the on-disk shape of a batch run.
type workflowFile struct {
	ContinueOnFail *bool          `json:"continueOnFail" yaml:"continueOnFail" toml:"continueOnFail"`
	Track          *bool          `json:"track" yaml:"track" toml:"track"`
	Items          []workflowItem `json:"items" yaml:"items" toml:"items"`
}

// workflowItem is one item's parameters.
type workflowItem map[string]any

// UnmarshalYAML keeps numeric scalars as their source text. YAML would read
// knownVersion: 1.10 as the float 1.1.
func (i *workflowItem) UnmarshalYAML(node *yaml.Node) error {
	value, err := yamlValue(node)
	if err != nil {
		return err
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("line %d: workflow item must be a mapping", node.Line)
	}
	*i = fields
	return nil
}

func yamlValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.SequenceNode:
		values := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := yamlValue(child)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	case yaml.MappingNode:
		fields := make(map[string]any, len(node.Content)/2)
		for idx := 0; idx+1 < len(node.Content); idx += 2 {
			value, err := yamlValue(node.Content[idx+1])
			if err != nil {
				return nil, err
			}
			fields[node.Content[idx].Value] = value
		}
		return fields, nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var value bool
			if err := node.Decode(&value); err != nil {
				return nil, err
			}
			return value, nil
		default:
			return node.Value, nil
		}
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

func (w *workflowFile) watchItems() []watch.Item {
	items := make([]watch.Item, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, watch.Item(item))
	}
	return items
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}
	if outPath != "" && len(args) > 1 {
		return errors.New("--out takes a single workflow file; use --out-dir for several")
	}
	outDir, err = ensureOutDir(outDir)
	if err != nil {
		return err
	}
	inputFormat, err := cmd.Flags().GetString("input-format")
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

	workflows := make([]*workflowFile, 0, len(args))
	for _, path := range args {
		workflow, err := loadWorkflow(path, inputFormat)
		if err != nil {
			return err
		}
		workflows = append(workflows, workflow)
	}

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for i, workflow := range workflows {
		path := args[i]
		runOpts := opts
		if workflow.Track != nil && !cmd.Flags().Changed("track") {
			runOpts.Track = *workflow.Track
		}
		if workflow.ContinueOnFail != nil && !cmd.Flags().Changed("continue-on-fail") {
			runOpts.ContinueOnFail = *workflow.ContinueOnFail
		}

		target := outPath
		if outDir != "" {
			target = outDirPath(outDir, path, format)
		}

		observability.CLILogger.Debug("Running workflow",
			zap.String("file", path),
			zap.Int("items", len(workflow.Items)),
			zap.Bool("continue_on_fail", runOpts.ContinueOnFail))

		if err := runItems(cmd, cfg, db, workflow.watchItems(), runOpts, format, target, "batch"); err != nil {
			return err
		}
	}
	return nil
}

func loadWorkflow(path, format string) (*workflowFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- path is chosen by the user
	}
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}

	if strings.TrimSpace(format) == "" {
		format = workflowFormat(path)
	}
	workflow, err := decodeWorkflow(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return workflow, nil
}

func workflowFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func decodeWorkflow(data []byte, format string) (*workflowFile, error) {
	var workflow workflowFile
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &workflow); err != nil {
			return nil, err
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&workflow); err != nil {
			return nil, err
		}
	case "toml":
		if err := toml.Unmarshal(data, &workflow); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported workflow format %q (use yaml, json or toml)", format)
	}

	if len(workflow.Items) == 0 {
		return nil, errors.New("workflow has no items")
	}
	return &workflow, nil
}
