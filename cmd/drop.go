package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var dropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a database",
	Long:  `Drop a database, forcibly terminating any active connections.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminClient(cmd, func(ctx context.Context, client *pgadmin.Client) error {
			return client.DropDatabase(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(dropCmd)
}
