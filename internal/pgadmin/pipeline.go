package pgadmin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/bnema/pgman/internal/config"
)

// Dump writes a database to outPath with pg_dump in custom format, so the
// result can be fed back through pg_restore.
func Dump(ctx context.Context, cfg config.PostgresConfig, database, outPath string) error {
	args := dumpArgs(cfg, database, outPath)
	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = pipelineEnv(cfg)

	log.Debug("running pg_dump", "database", database, "output", outPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pg_dump failed: %w: %s", err, string(out))
	}
	log.Info("database dumped", "database", database, "output", outPath)
	return nil
}

// Restore applies a dump file to the target database with pg_restore. The
// tool's combined output is always returned so a failure can be shown to
// the operator verbatim; no progress is synthesized from it.
func Restore(ctx context.Context, cfg config.PostgresConfig, database, dumpPath string) (string, error) {
	args := restoreArgs(cfg, database, dumpPath)
	cmd := exec.CommandContext(ctx, "pg_restore", args...)
	cmd.Env = pipelineEnv(cfg)

	log.Debug("running pg_restore", "database", database, "input", dumpPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("pg_restore failed: %w", err)
	}
	log.Info("database restored", "database", database, "input", dumpPath)
	return string(out), nil
}

func dumpArgs(cfg config.PostgresConfig, database, outPath string) []string {
	args := []string{
		"--format", "custom",
		"--dbname", database,
		"--file", outPath,
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
	}
	if cfg.Username != "" {
		args = append(args, "--username", cfg.Username)
	}
	return args
}

func restoreArgs(cfg config.PostgresConfig, database, dumpPath string) []string {
	args := []string{
		"--clean",
		"--if-exists",
		"--dbname", database,
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
	}
	if cfg.Username != "" {
		args = append(args, "--username", cfg.Username)
	}
	return append(args, dumpPath)
}

// pipelineEnv passes the password through PGPASSWORD so it never appears
// in the process argument list.
func pipelineEnv(cfg config.PostgresConfig) []string {
	env := os.Environ()
	if cfg.Password != "" {
		env = append(env, "PGPASSWORD="+cfg.Password)
	}
	if cfg.UseSSL {
		env = append(env, "PGSSLMODE=require")
	}
	return env
}
