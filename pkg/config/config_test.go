package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearProfilerEnv removes variables that would leak into Load from the
// surrounding environment.
func clearProfilerEnv() {
	for _, key := range []string{
		"ENVIRONMENT", "LOG_LEVEL",
		"LAKEHOUSE_HOST", "LAKEHOUSE_WAREHOUSE_ID", "LAKEHOUSE_TOKEN",
		"LAKEHOUSE_CLIENT_ID", "LAKEHOUSE_CLIENT_SECRET", "LAKEHOUSE_TIMEOUT_SECS",
		"PROFILING_TABLES", "PROFILING_MAX_WAIT_SECS", "PROFILING_CALL_ANALYZE",
		"PROFILING_INCLUDE_COLUMNS", "PROFILING_MAX_CONCURRENT_TABLES",
		"PGENABLED", "PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
env: "local"
lakehouse:
  host: "https://acme.cloud.example.com"
  warehouse_id: "wh-from-yaml"
profiling:
  tables:
    - "main.sales.orders"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	clearProfilerEnv()
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LAKEHOUSE_WAREHOUSE_ID", "wh-from-env")
	t.Setenv("LAKEHOUSE_TOKEN", "dapi-test-token")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Lakehouse.WarehouseID != "wh-from-env" {
		t.Errorf("expected WarehouseID=wh-from-env (from env), got %s", cfg.Lakehouse.WarehouseID)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}

	// YAML value survives where no env override exists
	if cfg.Lakehouse.Host != "https://acme.cloud.example.com" {
		t.Errorf("expected Host from yaml, got %s", cfg.Lakehouse.Host)
	}
	if cfg.Lakehouse.Token != "dapi-test-token" {
		t.Errorf("expected token from env, got %s", cfg.Lakehouse.Token)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
lakehouse:
  host: "https://acme.cloud.example.com"
  warehouse_id: "wh-123"
profiling:
  tables:
    - "main.sales.orders"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	clearProfilerEnv()
	t.Setenv("LAKEHOUSE_TOKEN", "dapi-test-token")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "local" {
		t.Errorf("expected Env=local (default), got %s", cfg.Env)
	}
	if cfg.Lakehouse.TimeoutSecs != 30 {
		t.Errorf("expected TimeoutSecs=30 (default), got %d", cfg.Lakehouse.TimeoutSecs)
	}
	if cfg.Profiling.MaxWaitSecs != 60 {
		t.Errorf("expected MaxWaitSecs=60 (default), got %d", cfg.Profiling.MaxWaitSecs)
	}
	if !cfg.Profiling.CallAnalyze {
		t.Error("expected CallAnalyze=true (default)")
	}
	if !cfg.Profiling.IncludeColumns {
		t.Error("expected IncludeColumns=true (default)")
	}
	if cfg.Profiling.MaxConcurrentTables != 4 {
		t.Errorf("expected MaxConcurrentTables=4 (default), got %d", cfg.Profiling.MaxConcurrentTables)
	}
	if cfg.Profiling.StartWarehouse {
		t.Error("expected StartWarehouse=false (default)")
	}
	if cfg.Profiling.TimeoutListCapacity != 100 {
		t.Errorf("expected TimeoutListCapacity=100 (default), got %d", cfg.Profiling.TimeoutListCapacity)
	}
	if cfg.Profiling.ErrorSampleCapacity != 10 {
		t.Errorf("expected ErrorSampleCapacity=10 (default), got %d", cfg.Profiling.ErrorSampleCapacity)
	}

	if cfg.Database.Enabled {
		t.Error("expected Database.Enabled=false (default)")
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("expected default database endpoint, got %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("expected MaxConnections=10 (default), got %d", cfg.Database.MaxConnections)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("expected SSLMode=disable (default), got %s", cfg.Database.SSLMode)
	}
}

func TestLoad_TablesFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
lakehouse:
  host: "https://acme.cloud.example.com"
  warehouse_id: "wh-123"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	clearProfilerEnv()
	t.Setenv("LAKEHOUSE_TOKEN", "dapi-test-token")
	t.Setenv("PROFILING_TABLES", "main.sales.orders,main.crm.accounts")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Profiling.Tables) != 2 {
		t.Fatalf("expected 2 tables from env, got %d", len(cfg.Profiling.Tables))
	}
	if cfg.Profiling.Tables[0] != "main.sales.orders" || cfg.Profiling.Tables[1] != "main.crm.accounts" {
		t.Errorf("unexpected tables: %v", cfg.Profiling.Tables)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	_, err = Load("test-version")
	if err == nil {
		t.Error("expected error when config.yaml is missing")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Lakehouse: LakehouseConfig{
				Host:        "https://acme.cloud.example.com",
				WarehouseID: "wh-123",
				Token:       "dapi-test-token",
			},
			Profiling: ProfilingConfig{
				Tables:              []string{"main.sales.orders"},
				MaxWaitSecs:         60,
				MaxConcurrentTables: 4,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid with token",
			mutate: func(c *Config) {},
		},
		{
			name: "valid with oauth pair",
			mutate: func(c *Config) {
				c.Lakehouse.Token = ""
				c.Lakehouse.ClientID = "svc-profiler"
				c.Lakehouse.ClientSecret = "oauth-secret"
			},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Lakehouse.Host = "" },
			wantErr: "host",
		},
		{
			name:    "missing warehouse",
			mutate:  func(c *Config) { c.Lakehouse.WarehouseID = "" },
			wantErr: "warehouse",
		},
		{
			name:    "missing credentials",
			mutate:  func(c *Config) { c.Lakehouse.Token = "" },
			wantErr: "credentials",
		},
		{
			name: "client id without secret",
			mutate: func(c *Config) {
				c.Lakehouse.Token = ""
				c.Lakehouse.ClientID = "svc-profiler"
			},
			wantErr: "credentials",
		},
		{
			name:    "no tables",
			mutate:  func(c *Config) { c.Profiling.Tables = nil },
			wantErr: "tables",
		},
		{
			name:    "negative wait budget",
			mutate:  func(c *Config) { c.Profiling.MaxWaitSecs = -1 },
			wantErr: "max_wait_secs",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Profiling.MaxConcurrentTables = 0 },
			wantErr: "max_concurrent_tables",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLakehouseConfigTimeout(t *testing.T) {
	cfg := LakehouseConfig{TimeoutSecs: 45}
	if cfg.Timeout() != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Timeout())
	}
}

func TestDatabaseConfigConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "profiler",
		Password: "secret",
		Database: "lakeprofiler",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	want := "host=db.internal port=5433 user=profiler password=secret dbname=lakeprofiler sslmode=require"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
