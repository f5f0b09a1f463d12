package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/rolesmith/pkg/engine/permissions"
)

func newPermissionsCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Print the IAM policy rolesmith needs",
		Long:  `Prints the read-only IAM JSON policy required to list resources and simulate policies.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jsonBytes, err := permissions.GeneratePolicy(only)
			if err != nil {
				return usageError{err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Limit to these listers, e.g. --only DynamoDB,S3")
	return cmd
}
