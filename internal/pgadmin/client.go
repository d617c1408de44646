package pgadmin

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"

	"github.com/bnema/pgman/internal/config"
)

// Client issues administrative SQL against a PostgreSQL server. Commands
// like CREATE DATABASE cannot run in a transaction, so this is a single
// connection, not a pool.
type Client struct {
	conn *pgx.Conn
}

// Connect opens an admin connection using a configuration snapshot. The
// maintenance database is used unless cfg.DBName says otherwise.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	conn, err := pgx.Connect(ctx, ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{conn: conn}, nil
}

// ConnString renders a keyword/value conninfo string. The password is
// passed here and never logged.
func ConnString(cfg config.PostgresConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	db := cfg.DBName
	if db == "" {
		db = "postgres"
	}
	parts = append(parts, fmt.Sprintf("dbname=%s", db))
	if cfg.UseSSL {
		parts = append(parts, "sslmode=require")
	} else {
		parts = append(parts, "sslmode=disable")
	}
	return strings.Join(parts, " ")
}

func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// ListDatabases returns all non-template databases, sorted by name.
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.conn.Query(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	if _, err := c.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", QuoteIdent(name))); err != nil {
		return fmt.Errorf("failed to create database %q: %w", name, err)
	}
	log.Info("database created", "name", name)
	return nil
}

// CloneDatabase copies a database into "<name>-clone" using the source as
// template. The source must have no active connections.
func (c *Client) CloneDatabase(ctx context.Context, name string) (string, error) {
	clone := name + "-clone"
	stmt := fmt.Sprintf("CREATE DATABASE %s WITH TEMPLATE %s OWNER %s",
		QuoteIdent(clone), QuoteIdent(name), QuoteIdent(name))
	if _, err := c.conn.Exec(ctx, stmt); err != nil {
		return "", fmt.Errorf("failed to clone database %q: %w", name, err)
	}
	log.Info("database cloned", "from", name, "to", clone)
	return clone, nil
}

// DropDatabase drops a database, forcibly terminating its connections.
func (c *Client) DropDatabase(ctx context.Context, name string) error {
	if _, err := c.conn.Exec(ctx, fmt.Sprintf("DROP DATABASE %s WITH (FORCE)", QuoteIdent(name))); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", name, err)
	}
	log.Info("database dropped", "name", name)
	return nil
}

func (c *Client) RenameDatabase(ctx context.Context, oldName, newName string) error {
	stmt := fmt.Sprintf("ALTER DATABASE %s RENAME TO %s", QuoteIdent(oldName), QuoteIdent(newName))
	if _, err := c.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to rename database %q to %q: %w", oldName, newName, err)
	}
	log.Info("database renamed", "from", oldName, "to", newName)
	return nil
}

func (c *Client) SetOwner(ctx context.Context, name, owner string) error {
	stmt := fmt.Sprintf("ALTER DATABASE %s OWNER TO %s", QuoteIdent(name), QuoteIdent(owner))
	if _, err := c.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set owner of %q to %q: %w", name, owner, err)
	}
	log.Info("database owner changed", "name", name, "owner", owner)
	return nil
}

// QuoteIdent double-quotes a SQL identifier. Database names come from the
// command line or object keys and cannot be bound as parameters in DDL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
