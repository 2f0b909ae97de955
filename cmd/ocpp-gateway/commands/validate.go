package commands

import (
	"fmt"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate a configuration file without starting the gateway",
	RunE:  runValidateConfig,
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid.")
	fmt.Printf("  CSMS URL: %s\n", cfg.OcppClient.CsmsURL)
	fmt.Printf("  Devices: %d\n", len(cfg.Devices))
	fmt.Printf("  Mapping templates: %d\n", len(cfg.MappingTemplates))
	return nil
}
