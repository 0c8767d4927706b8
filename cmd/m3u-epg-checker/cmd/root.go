// Package cmd implements the CLI commands for m3u-epg-checker.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nuken/m3u-epg-checker/internal/config"
	"github.com/nuken/m3u-epg-checker/internal/observability"
	"github.com/nuken/m3u-epg-checker/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "m3u-epg-checker",
	Short:   "Validate IPTV playlists and XMLTV guides",
	Version: version.Short(),
	Long: `m3u-epg-checker analyses M3U playlists and XMLTV electronic programme
guides, reports structural and semantic problems, checks that the two agree
with each other and generates a corrected playlist where it safely can.

Run "check" for a one-off analysis from the terminal, or "serve" to expose
the same analysis over an HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Logging flags are not bound to viper; they only override config and
	// environment when explicitly set.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.m3u-epg-checker/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig reads the config file and environment into the global viper.
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		v.AddConfigPath(".")
		v.AddConfigPath(home + "/.m3u-epg-checker")
		v.AddConfigPath("/etc/m3u-epg-checker")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	config.ConfigureEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
			os.Exit(1)
		}
	}
}

// loadConfig decodes the global viper state with logging flag overrides
// applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	cfg.Logging = loggingConfig(cfg.Logging)
	return cfg, nil
}

// initLogging installs the default logger.
//
// Priority (highest first): --log-level/--log-format when set,
// M3UEPG_LOGGING_* environment, config file, built-in defaults.
func initLogging() error {
	logCfg := loggingConfig(config.LoggingConfig{
		Level:      viper.GetString("logging.level"),
		Format:     viper.GetString("logging.format"),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
	})

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)
	return nil
}

func loggingConfig(base config.LoggingConfig) config.LoggingConfig {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		base.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		base.Format, _ = flags.GetString("log-format")
	}

	base.Level = strings.ToLower(base.Level)
	base.Format = strings.ToLower(base.Format)
	if base.Level == "warning" {
		base.Level = "warn"
	}
	if base.Level == "" {
		base.Level = "info"
	}
	if base.Format == "" {
		base.Format = "text"
	}
	return base
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
