package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stock-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, config.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "./data/stock.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Catalog.StrictDelete)
	assert.Equal(t, 5*time.Minute, cfg.Audit.Interval)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: a YAML file choosing postgres
	path := filepath.Join(t.TempDir(), "stock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
db:
  driver: postgres
  dsn: postgres://file/db
log:
  format: json
catalog:
  strict_delete: true
audit:
  interval: 30s
`), 0o600))

	// AND: an env override for one of its keys
	t.Setenv("STOCKLEDGER_HTTP_ADDR", ":9100")

	// WHEN
	cfg, err := config.Load(path)

	// THEN: env beats file, file beats defaults
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, config.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://file/db", cfg.DB.DSN)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Catalog.StrictDelete)
	assert.Equal(t, 30*time.Second, cfg.Audit.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			HTTP: config.HTTPConfig{Addr: ":8080"},
			DB:   config.DBConfig{Driver: config.DriverSQLite, Path: "x.db"},
			Log:  config.LogConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"memory needs nothing", func(c *config.Config) { c.DB = config.DBConfig{Driver: config.DriverMemory} }, ""},
		{"unknown driver", func(c *config.Config) { c.DB.Driver = "mysql" }, `db.driver "mysql"`},
		{"sqlite without path", func(c *config.Config) { c.DB.Path = "" }, "db.path"},
		{"postgres without dsn", func(c *config.Config) { c.DB.Driver = config.DriverPostgres }, "db.dsn"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative interval", func(c *config.Config) { c.Audit.Interval = -time.Second }, "audit.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
