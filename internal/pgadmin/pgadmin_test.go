package pgadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/pgman/internal/config"
)

func pgConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		Username: "admin",
		Password: "hunter2",
		UseSSL:   true,
		DBName:   "app",
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"app"`, QuoteIdent("app"))
	assert.Equal(t, `"app-clone"`, QuoteIdent("app-clone"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestConnString(t *testing.T) {
	got := ConnString(pgConfig())
	assert.Equal(t, "host=db.internal port=5433 user=admin password=hunter2 dbname=app sslmode=require", got)
}

func TestConnString_Defaults(t *testing.T) {
	got := ConnString(config.PostgresConfig{Host: "localhost", Port: 5432})
	assert.Equal(t, "host=localhost port=5432 dbname=postgres sslmode=disable", got)
}

func TestDumpArgs(t *testing.T) {
	args := dumpArgs(pgConfig(), "app", "/tmp/app.dump")
	assert.Equal(t, []string{
		"--format", "custom",
		"--dbname", "app",
		"--file", "/tmp/app.dump",
		"--host", "db.internal",
		"--port", "5433",
		"--username", "admin",
	}, args)
}

func TestRestoreArgs(t *testing.T) {
	args := restoreArgs(pgConfig(), "app", "/tmp/app.dump")
	assert.Equal(t, []string{
		"--clean",
		"--if-exists",
		"--dbname", "app",
		"--host", "db.internal",
		"--port", "5433",
		"--username", "admin",
		"/tmp/app.dump",
	}, args)
}

func TestPipelineEnv_PassesPasswordOutOfArgv(t *testing.T) {
	env := pipelineEnv(pgConfig())
	assert.Contains(t, env, "PGPASSWORD=hunter2")
	assert.Contains(t, env, "PGSSLMODE=require")

	env = pipelineEnv(config.PostgresConfig{Host: "localhost", Port: 5432})
	assert.NotContains(t, env, "PGPASSWORD=")
}
