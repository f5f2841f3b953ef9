package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/chess-lab/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and flag
overrides are applied. With --write the result is saved to the --config path.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("write", false, "save the effective configuration to the --config path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if write, _ := cmd.Flags().GetBool("write"); write {
		path, _ := cmd.Root().PersistentFlags().GetString("config")
		if err := config.Write(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	}
	return config.Encode(cmd.OutOrStdout(), cfg)
}
