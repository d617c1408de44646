package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <name>",
	Short: "Clone a database",
	Long:  `Clone a database into a new database named "<name>-clone".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminClient(cmd, func(ctx context.Context, client *pgadmin.Client) error {
			clone, err := client.CloneDatabase(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Database %q cloned to %q\n", args[0], clone)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cloneCmd)
}
