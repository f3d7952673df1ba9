package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func factoryResetCmd(g *globals) *cobra.Command {
	var yes bool

	c := &cobra.Command{
		Use:   "factory-reset",
		Short: "Delete all user data and recreate the default accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprintf(out, "This deletes every account and all data below %s.\n", g.dataDir)
				if !confirm(cmd.InOrStdin(), out, "Type JA to continue: ", "JA", false) {
					fmt.Fprintln(out, "Factory reset cancelled.")
					return errAborted
				}
			}
			svc, err := g.service()
			if err != nil {
				return err
			}
			lines, err := svc.FactoryReset(cmd.Context())
			if len(lines) > 0 {
				fmt.Fprintln(out, strings.Join(lines, "\n"))
			}
			return err
		},
	}

	c.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return c
}
