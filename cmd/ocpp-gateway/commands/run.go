package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/clientmanager"
	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/gateway"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp/processor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway and connect to the configured CSMS",
	RunE:  runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	registry, err := gateway.New(cfg.Devices, cfg.MappingTemplates)
	if err != nil {
		return fmt.Errorf("failed to build device registry: %w", err)
	}
	if err := registry.Start(); err != nil {
		return fmt.Errorf("failed to start device adapters: %w", err)
	}
	defer registry.Stop()

	cm := clientmanager.New(cfg.OcppClient, processor.Config{
		MaxMessages: cfg.Queue.MaxMessages,
		MaxBytes:    int64(cfg.Queue.MaxBytes),
	}, newNoopTransport)

	if err := cm.Start(); err != nil {
		return fmt.Errorf("failed to start OCPP client: %w", err)
	}
	defer cm.Stop()

	logger.Info("ocpp-gateway started",
		"csms_url", cfg.OcppClient.CsmsURL,
		"devices", len(cfg.Devices),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return nil
}
