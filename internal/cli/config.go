package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/reinstall/internal/config"
)

// NewConfigCommand creates the "config" command, which prints the
// effective configuration after all layers are merged.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration reinstall would run with, as YAML.

Defaults, the project config file, REINSTALL_* environment variables and
the --dir, --manager and --color flags are merged first.`,

		Args: usageArgs(cobra.NoArgs),

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path != "" {
				fmt.Fprintf(out, "# loaded from %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
