package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var setOwnerCmd = &cobra.Command{
	Use:   "set-owner <name> <owner>",
	Short: "Change the owner of a database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminClient(cmd, func(ctx context.Context, client *pgadmin.Client) error {
			return client.SetOwner(ctx, args[0], args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(setOwnerCmd)
}
