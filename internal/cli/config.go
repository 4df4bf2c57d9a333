package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"holorecon/pkg/config"
)

// NewConfigCommand groups configuration helpers.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration",
		Long: `Write a YAML file holding every setting at its default value.

Example:
  holorecon config init ./holorecon.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return WrapExitError(ExitCommandError, "cannot inspect "+path, err)
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
