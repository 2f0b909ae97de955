package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config for structural and semantic errors.
//
// Struct-tag validation (required fields, oneof enums, numeric ranges)
// runs first via go-playground/validator; semantic cross-field checks
// that validator tags cannot express (address block matching the declared
// protocol, mapping template references) run after.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	templates := make(map[string]bool, len(cfg.MappingTemplates))
	for _, t := range cfg.MappingTemplates {
		templates[t.Name] = true
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for _, d := range cfg.Devices {
		if seen[d.ID] {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = true

		if err := validateDeviceAddress(d); err != nil {
			return fmt.Errorf("device %q: %w", d.ID, err)
		}

		if !templates[d.TemplateID] {
			return fmt.Errorf("device %q: unknown mapping template %q", d.ID, d.TemplateID)
		}
	}

	if cfg.OcppClient.ClientCertPath != "" && cfg.OcppClient.ClientKeyPath == "" {
		return fmt.Errorf("ocpp_client: client_cert_path set without client_key_path")
	}
	if cfg.OcppClient.ClientKeyPath != "" && cfg.OcppClient.ClientCertPath == "" {
		return fmt.Errorf("ocpp_client: client_key_path set without client_cert_path")
	}

	return nil
}

// validateDeviceAddress checks that the address block matching a device's
// declared protocol is present and that the others are absent.
func validateDeviceAddress(d DeviceConfig) error {
	switch d.Protocol {
	case "echonet_lite":
		if d.Echonet == nil {
			return fmt.Errorf("protocol echonet_lite requires an echonet address block")
		}
	case "modbus_rtu":
		if d.ModbusRtu == nil {
			return fmt.Errorf("protocol modbus_rtu requires a modbus_rtu address block")
		}
	case "modbus_tcp":
		if d.ModbusTcp == nil {
			return fmt.Errorf("protocol modbus_tcp requires a modbus_tcp address block")
		}
	default:
		return fmt.Errorf("unknown protocol %q", d.Protocol)
	}
	return nil
}
