package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"holorecon/pkg/units"
)

// NewUnitsCommand prints the distance units accepted in configs and flags.
func NewUnitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List supported distance units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UNIT\tMETRES")
			for _, u := range units.Units() {
				fmt.Fprintf(tw, "%s\t%g\n", u, u.Factor())
			}
			return tw.Flush()
		},
	}
}
