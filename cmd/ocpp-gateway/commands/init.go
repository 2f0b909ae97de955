package commands

import (
	"fmt"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample ocpp-gateway configuration file.

By default the file is created at $XDG_CONFIG_HOME/ocpp-gateway/config.yaml.
Use --config to specify a custom path.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("Edit it to add your CSMS URL and field devices, then run:")
	fmt.Printf("  ocpp-gateway run --config %s\n", configPath)
	return nil
}
