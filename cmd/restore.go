package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <name> <input>",
	Short: "Restore a database from a dump file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := pgadmin.Restore(cmd.Context(), cfg.Postgres, args[0], args[1])
		if err != nil {
			fmt.Fprint(os.Stderr, out)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
