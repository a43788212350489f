package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lakeprofiler.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (tokens, passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Remote lakehouse endpoint and credentials
	Lakehouse LakehouseConfig `yaml:"lakehouse"`

	// Profiling run parameters
	Profiling ProfilingConfig `yaml:"profiling"`

	// Profile store (PostgreSQL, optional)
	Database DatabaseConfig `yaml:"database"`
}

// LakehouseConfig holds the remote workspace endpoint and credentials.
// Exactly one of Token or ClientID+ClientSecret must be set.
type LakehouseConfig struct {
	// Host is the workspace base URL, e.g. "https://acme.cloud.databricks.com".
	Host string `yaml:"host" env:"LAKEHOUSE_HOST"`

	// WarehouseID is the SQL warehouse statements run on.
	WarehouseID string `yaml:"warehouse_id" env:"LAKEHOUSE_WAREHOUSE_ID"`

	// Token is a personal access token. Secret - not in YAML.
	Token string `yaml:"-" env:"LAKEHOUSE_TOKEN"`

	// ClientID/ClientSecret select OAuth machine-to-machine auth instead of
	// a static token. The secret is env-only.
	ClientID     string `yaml:"client_id" env:"LAKEHOUSE_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"LAKEHOUSE_CLIENT_SECRET"`

	// TimeoutSecs bounds each HTTP call to the workspace.
	TimeoutSecs int `yaml:"timeout_secs" env:"LAKEHOUSE_TIMEOUT_SECS" env-default:"30"`
}

// Timeout returns the per-request HTTP timeout.
func (c *LakehouseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ProfilingConfig holds the run parameters for one profiling pass.
type ProfilingConfig struct {
	// Tables lists fully-qualified "catalog.schema.table" names to profile.
	Tables []string `yaml:"tables" env:"PROFILING_TABLES" env-separator:","`

	// MaxWaitSecs is the per-table statement wait budget.
	MaxWaitSecs int `yaml:"max_wait_secs" env:"PROFILING_MAX_WAIT_SECS" env-default:"60"`

	// CallAnalyze controls whether statistics computation is triggered, or
	// only previously computed statistics are read back.
	CallAnalyze bool `yaml:"call_analyze" env:"PROFILING_CALL_ANALYZE" env-default:"true"`

	// IncludeColumns widens profiling to per-column statistics.
	IncludeColumns bool `yaml:"include_columns" env:"PROFILING_INCLUDE_COLUMNS" env-default:"true"`

	// MaxConcurrentTables bounds the profiling worker pool.
	MaxConcurrentTables int `yaml:"max_concurrent_tables" env:"PROFILING_MAX_CONCURRENT_TABLES" env-default:"4"`

	// StartWarehouse issues a warehouse start request before profiling.
	StartWarehouse bool `yaml:"start_warehouse" env:"PROFILING_START_WAREHOUSE" env-default:"false"`

	// Report bounds.
	TimeoutListCapacity int `yaml:"timeout_list_capacity" env:"PROFILING_TIMEOUT_LIST_CAPACITY" env-default:"100"`
	ErrorSampleCapacity int `yaml:"error_sample_capacity" env:"PROFILING_ERROR_SAMPLE_CAPACITY" env-default:"10"`
}

// DatabaseConfig holds PostgreSQL profile-store configuration. The store is
// optional: with Enabled false, produced profiles are only reported, not
// persisted.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" env:"PGENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"profiler"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lakeprofiler"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (LAKEHOUSE_TOKEN, LAKEHOUSE_CLIENT_SECRET,
// PGPASSWORD) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the cross-field constraints Load cannot express in tags.
func (c *Config) Validate() error {
	if c.Lakehouse.Host == "" {
		return fmt.Errorf("lakehouse host is required (LAKEHOUSE_HOST)")
	}
	if c.Lakehouse.WarehouseID == "" {
		return fmt.Errorf("lakehouse warehouse id is required (LAKEHOUSE_WAREHOUSE_ID)")
	}
	hasToken := c.Lakehouse.Token != ""
	hasOAuth := c.Lakehouse.ClientID != "" && c.Lakehouse.ClientSecret != ""
	if !hasToken && !hasOAuth {
		return fmt.Errorf("lakehouse credentials required: LAKEHOUSE_TOKEN or LAKEHOUSE_CLIENT_ID + LAKEHOUSE_CLIENT_SECRET")
	}
	if len(c.Profiling.Tables) == 0 {
		return fmt.Errorf("no tables configured to profile")
	}
	if c.Profiling.MaxWaitSecs < 0 {
		return fmt.Errorf("profiling max_wait_secs must be >= 0, got %d", c.Profiling.MaxWaitSecs)
	}
	if c.Profiling.MaxConcurrentTables < 1 {
		return fmt.Errorf("profiling max_concurrent_tables must be >= 1, got %d", c.Profiling.MaxConcurrentTables)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
