package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display current configuration",
		Long:  "Display all snapprof configuration values. Uses ~/.config/snapprof/config.toml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.DefaultConfigDir())
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				return printConfigJSON(cmd, cfg)
			}
			return printConfigHuman(cmd, cfg)
		},
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func printConfigJSON(cmd *cobra.Command, cfg *config.Config) error {
	data := map[string]any{}
	for _, k := range config.ValidKeys() {
		data[k], _ = cfg.Get(k)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printConfigHuman(cmd *cobra.Command, cfg *config.Config) error {
	w := cmd.OutOrStdout()
	for _, k := range config.ValidKeys() {
		if _, err := fmt.Fprintf(w, "%-21s %s\n", k, configValue(cfg, k)); err != nil {
			return err
		}
	}
	return nil
}

// configValue returns the display form of a config field by key name.
func configValue(cfg *config.Config, key string) string {
	v, err := cfg.Get(key)
	if err != nil {
		return ""
	}
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return fmt.Sprint(v)
}
