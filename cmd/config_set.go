package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/snapprof/internal/config"
)

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Validate and set a single configuration key in ~/.config/snapprof/config.toml.\n\n" +
			"Benchmark flags fall back to these values when not given on the command line.\n\n" +
			"Values starting with a dash are read as flags. Put -- before the key to pass them:\n" +
			"  snapprof config set -- num_snapshots -2",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			configDir := config.DefaultConfigDir()
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			if err := cfg.Set(key, value); err != nil {
				return err
			}

			if err := config.Save(cfg, configDir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}
