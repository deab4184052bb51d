package commands

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doomdumper/doomdumper/internal/config"
	"github.com/doomdumper/doomdumper/pkg/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func writeConfig(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return enc.Close()
}
