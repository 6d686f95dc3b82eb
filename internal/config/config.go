// Package config loads stockroom settings from defaults, an optional TOML
// file and STOCKROOM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Admin    AdminConfig
	Stock    StockConfig
	Reports  ReportsConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string // optional file receiving all levels
	Level string // debug, info, warn, error
}

// AdminConfig holds first-run settings.
type AdminConfig struct {
	Username string
}

// StockConfig holds stock defaults.
type StockConfig struct {
	DefaultLocation string
	LowThreshold    int
}

// ReportsConfig selects where rendered stock-take reports are archived. S3
// wins when a bucket is configured; otherwise Dir is used if set.
type ReportsConfig struct {
	Dir string
	S3  S3Config
}

// S3Config holds an S3-compatible bucket for report archives.
type S3Config struct {
	Bucket       string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Enabled reports whether an S3 bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads configuration. Priority, highest first: STOCKROOM_* environment
// variables (e.g. STOCKROOM_SERVER_ADDR), the config file, built-in
// defaults. When path is empty, stockroom.toml in the working directory is
// used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stockroom")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOCKROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Path:  v.GetString("log.path"),
			Level: strings.ToLower(v.GetString("log.level")),
		},
		Admin: AdminConfig{
			Username: v.GetString("admin.username"),
		},
		Stock: StockConfig{
			DefaultLocation: v.GetString("stock.default_location"),
			LowThreshold:    v.GetInt("stock.low_threshold"),
		},
		Reports: ReportsConfig{
			Dir: v.GetString("reports.dir"),
			S3: S3Config{
				Bucket:       v.GetString("reports.s3.bucket"),
				Endpoint:     v.GetString("reports.s3.endpoint"),
				Region:       v.GetString("reports.s3.region"),
				AccessKey:    v.GetString("reports.s3.access_key"),
				SecretKey:    v.GetString("reports.s3.secret_key"),
				UsePathStyle: v.GetBool("reports.s3.use_path_style"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "stockroom.sqlite3")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("admin.username", "Admin")
	v.SetDefault("stock.default_location", "Warehouse")
	v.SetDefault("stock.low_threshold", 5)
	v.SetDefault("reports.dir", "")
	v.SetDefault("reports.s3.bucket", "")
	v.SetDefault("reports.s3.endpoint", "")
	v.SetDefault("reports.s3.region", "")
	v.SetDefault("reports.s3.access_key", "")
	v.SetDefault("reports.s3.secret_key", "")
	v.SetDefault("reports.s3.use_path_style", false)
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Stock.LowThreshold < 0 {
		return fmt.Errorf("stock.low_threshold must be 0 or more, got %d", c.Stock.LowThreshold)
	}
	if strings.TrimSpace(c.Stock.DefaultLocation) == "" {
		return errors.New("stock.default_location is required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	s3 := c.Reports.S3
	if s3.Enabled() {
		if s3.Region == "" {
			return errors.New("reports.s3.region is required when reports.s3.bucket is set")
		}
		if (s3.AccessKey == "") != (s3.SecretKey == "") {
			return errors.New("reports.s3.access_key and reports.s3.secret_key must be set together")
		}
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	switch c.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Level)
	}
}
