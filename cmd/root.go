package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/pgadmin"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pgman",
	Short: "PostgreSQL database management tool",
	Long: `pgman administers PostgreSQL databases and their S3-stored logical
backups: one-shot commands for create/clone/drop/rename/dump/restore, and
an interactive browser for discovering and restoring backup objects.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pgman.toml)")
	rootCmd.PersistentFlags().StringP("address", "a", "localhost", "PostgreSQL host")
	rootCmd.PersistentFlags().IntP("port", "p", 5432, "PostgreSQL port")
	rootCmd.PersistentFlags().StringP("username", "u", "", "PostgreSQL username")
	rootCmd.PersistentFlags().StringP("password", "P", "", "PostgreSQL password")
	rootCmd.PersistentFlags().Bool("ssl", true, "enable SSL for the connection")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	must(viper.BindPFlag("postgres.host", rootCmd.PersistentFlags().Lookup("address")))
	must(viper.BindPFlag("postgres.port", rootCmd.PersistentFlags().Lookup("port")))
	must(viper.BindPFlag("postgres.username", rootCmd.PersistentFlags().Lookup("username")))
	must(viper.BindPFlag("postgres.password", rootCmd.PersistentFlags().Lookup("password")))
	must(viper.BindPFlag("postgres.use_ssl", rootCmd.PersistentFlags().Lookup("ssl")))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pgman")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(userConfigDir + "/pgman")
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(homeDir + "/.pgman")
		}
	}

	viper.SetEnvPrefix("PGMAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", "path", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}

	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load()
}

// withAdminClient connects with the current configuration, runs fn, and
// closes the connection.
func withAdminClient(cmd *cobra.Command, fn func(ctx context.Context, client *pgadmin.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := pgadmin.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(ctx); cerr != nil {
			log.Warn("error closing connection", "error", cerr)
		}
	}()

	return fn(ctx, client)
}
