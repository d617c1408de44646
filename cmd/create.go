package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminClient(cmd, func(ctx context.Context, client *pgadmin.Client) error {
			return client.CreateDatabase(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
