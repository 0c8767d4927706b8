// Package config provides configuration management for m3u-epg-checker using
// Viper. It supports configuration from files, environment variables, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/nuken/m3u-epg-checker/internal/version"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "M3UEPG"

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultChannelLimit    = 750
	defaultMaxInputSize    = 100 * 1024 * 1024
	defaultFetchTimeout    = 30 * time.Second
	defaultRetention       = 24 * time.Hour
	defaultPurgeSchedule   = "0 */15 * * * *"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendDatabase = "database"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// AnalysisConfig holds validation defaults.
type AnalysisConfig struct {
	DefaultMode  string   `mapstructure:"default_mode"` // basic, advanced
	ChannelLimit int      `mapstructure:"channel_limit"`
	MaxInputSize ByteSize `mapstructure:"max_input_size"`
}

// FetchConfig holds remote source fetch configuration.
type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize ByteSize      `mapstructure:"max_body_size"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// StorageConfig holds fixed playlist storage configuration.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory, file, database
	BaseDir string `mapstructure:"base_dir"`
	// Retention is how long fixed playlists are kept. Zero keeps them forever.
	Retention     Duration `mapstructure:"retention"`
	PurgeSchedule string   `mapstructure:"purge_schedule"` // 6-field cron expression
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with M3UEPG_ and use underscores for
// nesting. Example: M3UEPG_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/m3u-epg-checker")
		v.AddConfigPath("$HOME/.m3u-epg-checker")
	}

	ConfigureEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	return FromViper(v)
}

// ConfigureEnv enables M3UEPG_-prefixed environment overrides on v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Analysis defaults
	v.SetDefault("analysis.default_mode", "basic")
	v.SetDefault("analysis.channel_limit", defaultChannelLimit)
	v.SetDefault("analysis.max_input_size", defaultMaxInputSize)

	// Fetch defaults
	v.SetDefault("fetch.timeout", defaultFetchTimeout)
	v.SetDefault("fetch.max_body_size", defaultMaxInputSize)
	v.SetDefault("fetch.user_agent", version.UserAgent())

	// Storage defaults
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.retention", defaultRetention)
	v.SetDefault("storage.purge_schedule", defaultPurgeSchedule)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "m3u-epg-checker.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	validModes := map[string]bool{"basic": true, "advanced": true}
	if !validModes[c.Analysis.DefaultMode] {
		return fmt.Errorf("analysis.default_mode must be one of: basic, advanced")
	}
	if c.Analysis.ChannelLimit < 1 {
		return fmt.Errorf("analysis.channel_limit must be at least 1")
	}
	if c.Analysis.MaxInputSize < 1 {
		return fmt.Errorf("analysis.max_input_size must be positive")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxBodySize < 1 {
		return fmt.Errorf("fetch.max_body_size must be positive")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the file backend")
		}
	case BackendDatabase:
		validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
		if !validDrivers[c.Database.Driver] {
			return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: memory, file, database")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	if c.Storage.Retention > 0 {
		if _, err := CronParser.Parse(c.Storage.PurgeSchedule); err != nil {
			return fmt.Errorf("storage.purge_schedule: %w", err)
		}
	}

	return nil
}

// CronParser parses 6-field cron expressions (with seconds).
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Map converts the configuration to a nested map keyed by mapstructure tags,
// with durations and sizes rendered human-readably. Used by "config dump".
func (c *Config) Map() map[string]any {
	return toMap(reflect.ValueOf(*c))
}

func toMap(val reflect.Value) map[string]any {
	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(typ.Field(i).Name)
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = v.String()
		case Duration:
			result[key] = v.String()
		case ByteSize:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field)
			} else {
				result[key] = v
			}
		}
	}
	return result
}
