package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ErlanBelekov/points-rebuild/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(environ Env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with the token masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(environ)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	configCmd.AddCommand(showCmd)
	return configCmd
}
