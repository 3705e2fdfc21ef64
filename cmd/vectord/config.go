package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vectord/internal/config"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would run with, after the config file and
VECTORD_* environment overrides are applied. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}

// printConfig renders cfg as YAML. The JSON form carries the redacted
// secrets and human-readable sizes and durations.
func printConfig(w io.Writer, cfg *config.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	parser := yaml.Parser()
	tree, err := parser.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	out, err := parser.Marshal(tree)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	_, err = w.Write(out)
	return err
}
