package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nuken/m3u-epg-checker/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format.

With no config file and no M3UEPG_ variables set this prints the defaults,
which makes a usable template:

  m3u-epg-checker config dump > config.yaml

Environment variables use the M3UEPG_ prefix and underscores for nesting.
Example: server.port -> M3UEPG_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

const configHeader = `# m3u-epg-checker configuration
#
# Duration format: 30s, 5m, 1h, 7d
# Size format: 512KB, 100MB
# storage.purge_schedule takes a 6-field cron expression (with seconds).
#
`

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	return dumpConfig(cmd, cfg)
}

func dumpConfig(cmd *cobra.Command, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Map())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprint(out, configHeader); err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
