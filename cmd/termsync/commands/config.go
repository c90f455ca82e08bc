package commands

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/termhub/termsync/config"
	"github.com/termhub/termsync/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage termsync configuration",
	Long: `config — Manage termsync configuration

Displays the active configuration and persists changes to the config file.

Configuration sources (in order of precedence):
1. Environment variables (TERMSYNC_* prefix)
2. Config file (~/.termsync/termsync.toml)
3. Default values

Examples:
  termsync config show                                # Show active configuration
  termsync config set scheduler.enabled true          # Enable the daemon scheduler
  termsync config set scheduler.interval_minutes 60
  termsync config set feed.timeout_seconds 120`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long: "Persist a configuration value to the config file.\n\nKnown keys:\n  " +
		strings.Join(config.SettingKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	fmt.Printf("# termsync configuration\n%s", data)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := config.Update(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s in %s\n", args[0], args[1], config.DefaultConfigPath())
	return nil
}
