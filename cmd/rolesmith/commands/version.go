package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/rolesmith/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.AppName, version.Current, version.Commit)
		},
	}
}
