package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// S3Config addresses an S3-compatible object store holding backup dumps.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	EndpointURL     string `mapstructure:"endpoint_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// PostgresConfig holds the connection parameters for the target server.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	DBName   string `mapstructure:"db_name"`
}

type Config struct {
	S3       S3Config       `mapstructure:"s3"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// Field identifies a single editable configuration value.
type Field int

const (
	FieldBucket Field = iota
	FieldRegion
	FieldPrefix
	FieldEndpointURL
	FieldAccessKeyID
	FieldSecretAccessKey
	FieldPathStyle
	FieldPgHost
	FieldPgPort
	FieldPgUsername
	FieldPgPassword
	FieldPgSSL
	FieldPgDBName
)

// S3Fields and PgFields list the fields of each pane in display order.
var (
	S3Fields = []Field{FieldBucket, FieldRegion, FieldPrefix, FieldEndpointURL, FieldAccessKeyID, FieldSecretAccessKey, FieldPathStyle}
	PgFields = []Field{FieldPgHost, FieldPgPort, FieldPgUsername, FieldPgPassword, FieldPgSSL, FieldPgDBName}
)

var fieldLabels = map[Field]string{
	FieldBucket:          "Bucket",
	FieldRegion:          "Region",
	FieldPrefix:          "Prefix",
	FieldEndpointURL:     "Endpoint",
	FieldAccessKeyID:     "Access Key ID",
	FieldSecretAccessKey: "Secret Key",
	FieldPathStyle:       "Path Style",
	FieldPgHost:          "PG Host",
	FieldPgPort:          "PG Port",
	FieldPgUsername:      "PG Username",
	FieldPgPassword:      "PG Password",
	FieldPgSSL:           "PG SSL",
	FieldPgDBName:        "PG Database",
}

func (f Field) Label() string { return fieldLabels[f] }

// Secret reports whether the field value must be masked when rendered.
func (f Field) Secret() bool {
	return f == FieldAccessKeyID || f == FieldSecretAccessKey || f == FieldPgPassword
}

// ValidationError reports a rejected field edit. The prior value is kept.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field.Label(), e.Reason)
}

// Store holds the current configuration. Get returns a value snapshot, so
// an operation started from one is unaffected by later edits.
type Store struct {
	mu  sync.Mutex
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ValueOf returns the current string form of a field, secrets unmasked.
func (s *Store) ValueOf(f Field) string {
	cfg := s.Get()
	switch f {
	case FieldBucket:
		return cfg.S3.Bucket
	case FieldRegion:
		return cfg.S3.Region
	case FieldPrefix:
		return cfg.S3.Prefix
	case FieldEndpointURL:
		return cfg.S3.EndpointURL
	case FieldAccessKeyID:
		return cfg.S3.AccessKeyID
	case FieldSecretAccessKey:
		return cfg.S3.SecretAccessKey
	case FieldPathStyle:
		return strconv.FormatBool(cfg.S3.PathStyle)
	case FieldPgHost:
		return cfg.Postgres.Host
	case FieldPgPort:
		if cfg.Postgres.Port == 0 {
			return ""
		}
		return strconv.Itoa(cfg.Postgres.Port)
	case FieldPgUsername:
		return cfg.Postgres.Username
	case FieldPgPassword:
		return cfg.Postgres.Password
	case FieldPgSSL:
		return strconv.FormatBool(cfg.Postgres.UseSSL)
	case FieldPgDBName:
		return cfg.Postgres.DBName
	}
	return ""
}

// SetField validates and commits a single field. Validation is syntactic
// only; whether a bucket or host actually exists is discovered when the
// next operation runs against it.
func (s *Store) SetField(f Field, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch f {
	case FieldBucket:
		if strings.TrimSpace(raw) == "" {
			return &ValidationError{Field: f, Reason: "must not be empty"}
		}
		s.cfg.S3.Bucket = raw
	case FieldRegion:
		s.cfg.S3.Region = raw
	case FieldPrefix:
		s.cfg.S3.Prefix = raw
	case FieldEndpointURL:
		s.cfg.S3.EndpointURL = raw
	case FieldAccessKeyID:
		s.cfg.S3.AccessKeyID = raw
	case FieldSecretAccessKey:
		s.cfg.S3.SecretAccessKey = raw
	case FieldPathStyle:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return &ValidationError{Field: f, Reason: "must be true or false"}
		}
		s.cfg.S3.PathStyle = v
	case FieldPgHost:
		if strings.TrimSpace(raw) == "" {
			return &ValidationError{Field: f, Reason: "must not be empty"}
		}
		s.cfg.Postgres.Host = raw
	case FieldPgPort:
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return &ValidationError{Field: f, Reason: "must be a number between 1 and 65535"}
		}
		s.cfg.Postgres.Port = port
	case FieldPgUsername:
		s.cfg.Postgres.Username = raw
	case FieldPgPassword:
		s.cfg.Postgres.Password = raw
	case FieldPgSSL:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return &ValidationError{Field: f, Reason: "must be true or false"}
		}
		s.cfg.Postgres.UseSSL = v
	case FieldPgDBName:
		s.cfg.Postgres.DBName = raw
	default:
		return &ValidationError{Field: f, Reason: "unknown field"}
	}
	return nil
}

// Mask is the fixed-width placeholder rendered in place of secret values,
// regardless of their real length.
const Mask = "********"

// Load builds the initial configuration from viper (defaults, config file
// and PGMAN_* environment variables, already wired by the command layer).
func Load() (Config, error) {
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.path_style", false)
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.use_ssl", true)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
		return Config{}, fmt.Errorf("postgres.port must be between 1 and 65535, got %d", cfg.Postgres.Port)
	}
	return cfg, nil
}
