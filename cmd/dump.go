package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/pgman/internal/pgadmin"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <name> <output>",
	Short: "Dump a database to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return pgadmin.Dump(cmd.Context(), cfg.Postgres, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
