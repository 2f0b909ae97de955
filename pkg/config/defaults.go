package config

import (
	"strings"
	"time"

	"github.com/ocppgw/ocpp-gateway/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default strategy: zero values are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyOcppClientDefaults(&cfg.OcppClient)
	applyQueueDefaults(&cfg.Queue)
	applyDeviceDefaults(cfg.Devices)

	// No defaults for devices or mapping templates themselves; empty lists
	// stay empty.
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyOcppClientDefaults sets CSMS connection defaults, mirroring the
// original implementation's OcppClientConfig defaults.
func applyOcppClientDefaults(cfg *OcppClientConfig) {
	// VerifyPeer is not defaulted here: a false bool cannot be told apart
	// from an unset one. Load sets it to true when the config source does
	// not mention verify_peer.
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.MaxReconnectInterval == 0 {
		cfg.MaxReconnectInterval = 300 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 300 * time.Second
	}
	if cfg.ChargePointModel == "" {
		cfg.ChargePointModel = "OCPP Gateway"
	}
	if cfg.ChargePointVendor == "" {
		cfg.ChargePointVendor = "OCPP Gateway"
	}
	if cfg.FirmwareVersion == "" {
		cfg.FirmwareVersion = "1.0.0"
	}
}

// applyQueueDefaults sets offline-queue defaults.
func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = 1000
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = bytesize.ByteSize(bytesize.MiB) * 4
	}
}

// applyDeviceDefaults sets per-device address defaults.
func applyDeviceDefaults(devices []DeviceConfig) {
	for i := range devices {
		d := &devices[i]
		switch d.Protocol {
		case "echonet_lite":
			if d.Echonet != nil && d.Echonet.Port == 0 {
				d.Echonet.Port = 3610
			}
		case "modbus_rtu":
			if d.ModbusRtu != nil {
				if d.ModbusRtu.DataBits == 0 {
					d.ModbusRtu.DataBits = 8
				}
				if d.ModbusRtu.StopBits == 0 {
					d.ModbusRtu.StopBits = 1
				}
			}
		case "modbus_tcp":
			if d.ModbusTcp != nil && d.ModbusTcp.Port == 0 {
				d.ModbusTcp.Port = 502
			}
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied
// and no devices configured, useful for generating sample configuration
// files and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging:    LoggingConfig{},
		OcppClient: OcppClientConfig{CsmsURL: "wss://localhost/ocpp/CP001", VerifyPeer: true},
		Queue:      QueueConfig{},
	}

	ApplyDefaults(cfg)
	return cfg
}
