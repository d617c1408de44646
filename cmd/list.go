package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAdminClient(cmd, func(ctx context.Context, client *pgadmin.Client) error {
			names, err := client.ListDatabases(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Available databases:")
			for _, name := range names {
				fmt.Printf("  - %s\n", name)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
