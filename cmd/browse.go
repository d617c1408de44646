package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse S3 backups interactively",
	Long: `Open the full-screen browser over the configured bucket. Select a
backup and confirm to download and restore it into the configured target
database. Connection settings are editable in place from the config pane.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return tui.Run(config.NewStore(cfg))
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().String("bucket", "", "S3 bucket name")
	browseCmd.Flags().String("region", "", "S3 region")
	browseCmd.Flags().String("prefix", "", "S3 key prefix to list under")
	browseCmd.Flags().String("endpoint-url", "", "custom S3 endpoint URL")
	browseCmd.Flags().String("access-key-id", "", "S3 access key ID")
	browseCmd.Flags().String("secret-access-key", "", "S3 secret access key")
	browseCmd.Flags().Bool("path-style", false, "use path-style S3 addressing")
	browseCmd.Flags().String("db-name", "", "target database for restores")

	must(viper.BindPFlag("s3.bucket", browseCmd.Flags().Lookup("bucket")))
	must(viper.BindPFlag("s3.region", browseCmd.Flags().Lookup("region")))
	must(viper.BindPFlag("s3.prefix", browseCmd.Flags().Lookup("prefix")))
	must(viper.BindPFlag("s3.endpoint_url", browseCmd.Flags().Lookup("endpoint-url")))
	must(viper.BindPFlag("s3.access_key_id", browseCmd.Flags().Lookup("access-key-id")))
	must(viper.BindPFlag("s3.secret_access_key", browseCmd.Flags().Lookup("secret-access-key")))
	must(viper.BindPFlag("s3.path_style", browseCmd.Flags().Lookup("path-style")))
	must(viper.BindPFlag("postgres.db_name", browseCmd.Flags().Lookup("db-name")))
}
