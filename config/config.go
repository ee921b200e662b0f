/*
Package config loads server settings with viper.

SOURCES (later wins):
  1. Defaults below
  2. Optional config file (YAML, TOML or JSON, picked by extension)
  3. Environment, prefixed STOCKLEDGER_ with "." replaced by "_"
     e.g. STOCKLEDGER_DB_DRIVER=postgres, STOCKLEDGER_HTTP_ADDR=:9090

KEYS:
  http.addr              listen address                       ":8080"
  db.driver              sqlite | postgres | memory            "sqlite"
  db.path                sqlite file path                     "./data/stock.db"
  db.dsn                 postgres connection string           ""
  log.level              trace | debug | info | warn | error  "info"
  log.format             console | json                       "console"
  cors.allowed_origins   list of origins                      ["*"]
  catalog.strict_delete  refuse deleting referenced entries   false
  audit.interval         negative-stock audit period, 0 = off "5m"
  metrics.enabled        expose /metrics                      true
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOCKLEDGER"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Log     LogConfig     `mapstructure:"log"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig selects the store. Path is used by sqlite, DSN by postgres.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type CatalogConfig struct {
	StrictDelete bool `mapstructure:"strict_delete"`
}

type AuditConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads defaults, then the file at path if non-empty, then the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "./data/stock.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("catalog.strict_delete", false)
	v.SetDefault("audit.interval", 5*time.Minute)
	v.SetDefault("metrics.enabled", true)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not one of sqlite, postgres, memory", c.DB.Driver))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of console, json", c.Log.Format))
	}
	if c.Audit.Interval < 0 {
		errs = append(errs, errors.New("audit.interval must not be negative"))
	}
	return errors.Join(errs...)
}
