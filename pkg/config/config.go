package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/ocppgw/ocpp-gateway/internal/bytesize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the gateway's static configuration: the OCPP client
// identity and connection parameters, the offline queue and logging
// behavior, and the device/mapping inventory the device adapters and
// variable translator are built from.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (OCPPGW_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// OcppClient configures the OCPP client identity and connection to the
	// CSMS (§6.4).
	OcppClient OcppClientConfig `mapstructure:"ocpp_client" yaml:"ocpp_client"`

	// Queue configures the offline outbound message queue (§4.2).
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	// Devices lists the field devices the gateway talks to.
	Devices []DeviceConfig `mapstructure:"devices" validate:"dive" yaml:"devices"`

	// MappingTemplates lists the named OCPP-variable <-> register bindings
	// consumed by the variable translator (§4.8).
	MappingTemplates []MappingTemplateConfig `mapstructure:"mapping_templates" validate:"dive" yaml:"mapping_templates"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: TRACE, DEBUG, INFO, WARN, ERROR, CRITICAL.
	Level string `mapstructure:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR CRITICAL" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// OcppClientConfig configures the OCPP client's identity and its connection
// to the CSMS, per §6.4.
type OcppClientConfig struct {
	// CsmsURL is the CSMS WebSocket endpoint, e.g. wss://csms.example.com/ocpp/CP001.
	CsmsURL string `mapstructure:"csms_url" validate:"required,url" yaml:"csms_url"`

	// CaCertPath is the path to the CA bundle used to verify the CSMS certificate.
	CaCertPath string `mapstructure:"ca_cert_path" yaml:"ca_cert_path,omitempty"`

	// ClientCertPath and ClientKeyPath configure mutual TLS; both are required together.
	ClientCertPath string `mapstructure:"client_cert_path" yaml:"client_cert_path,omitempty"`
	ClientKeyPath  string `mapstructure:"client_key_path" yaml:"client_key_path,omitempty"`

	// VerifyPeer controls whether the CSMS certificate is verified.
	// Default: true. Set to false only for local development.
	VerifyPeer bool `mapstructure:"verify_peer" yaml:"verify_peer"`

	// ConnectTimeout bounds the initial WebSocket handshake.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0" yaml:"connect_timeout"`

	// ReconnectInterval is the initial backoff between reconnect attempts.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" validate:"gt=0" yaml:"reconnect_interval"`

	// MaxReconnectInterval caps the exponential backoff.
	MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval" validate:"gt=0" yaml:"max_reconnect_interval"`

	// MaxReconnectAttempts bounds the number of reconnect attempts; 0 means infinite.
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" validate:"gte=0" yaml:"max_reconnect_attempts"`

	// HeartbeatInterval is the fallback heartbeat period, overridden by the
	// interval the CSMS returns in the BootNotification response (E1).
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gt=0" yaml:"heartbeat_interval"`

	// ChargePointModel and ChargePointVendor are reported in BootNotification.
	// FirmwareVersion is validated and defaulted but is not included in the
	// BootNotification payload.
	ChargePointModel string `mapstructure:"charge_point_model" validate:"required" yaml:"charge_point_model"`
	ChargePointVendor string `mapstructure:"charge_point_vendor" validate:"required" yaml:"charge_point_vendor"`
	FirmwareVersion  string `mapstructure:"firmware_version" validate:"required" yaml:"firmware_version"`
}

// QueueConfig configures the offline outbound message queue (§4.2).
type QueueConfig struct {
	// MaxMessages bounds the number of queued serialized frames; on overflow
	// the oldest entry is discarded.
	MaxMessages int `mapstructure:"max_messages" validate:"gt=0" yaml:"max_messages"`

	// MaxBytes bounds the total serialized size of queued frames.
	// Supports human-readable sizes: "1MB", "512KB".
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" yaml:"max_bytes,omitempty"`
}

// DeviceConfig describes one field device and the address it is reached at.
//
// Exactly one of Echonet, ModbusRtu, ModbusTcp is populated, selected by
// Protocol.
type DeviceConfig struct {
	// ID must be unique among configured devices.
	ID string `mapstructure:"id" validate:"required" yaml:"id"`

	Name         string `mapstructure:"name" yaml:"name,omitempty"`
	Model        string `mapstructure:"model" yaml:"model,omitempty"`
	Manufacturer string `mapstructure:"manufacturer" yaml:"manufacturer,omitempty"`

	// Protocol selects which of the address blocks below applies.
	Protocol string `mapstructure:"protocol" validate:"required,oneof=echonet_lite modbus_rtu modbus_tcp" yaml:"protocol"`

	// TemplateID references a MappingTemplateConfig by name.
	TemplateID string `mapstructure:"template_id" validate:"required" yaml:"template_id"`

	Echonet   *EchonetAddressConfig   `mapstructure:"echonet" yaml:"echonet,omitempty"`
	ModbusRtu *ModbusRtuAddressConfig `mapstructure:"modbus_rtu" yaml:"modbus_rtu,omitempty"`
	ModbusTcp *ModbusTcpAddressConfig `mapstructure:"modbus_tcp" yaml:"modbus_tcp,omitempty"`
}

// EchonetAddressConfig addresses a device reachable over ECHONET Lite.
type EchonetAddressConfig struct {
	IP   string `mapstructure:"ip" validate:"required,ip" yaml:"ip"`
	Port int    `mapstructure:"port" yaml:"port,omitempty"`
}

// ModbusRtuAddressConfig addresses a device reachable over Modbus RTU.
type ModbusRtuAddressConfig struct {
	Port     string `mapstructure:"port" validate:"required" yaml:"port"`
	BaudRate int    `mapstructure:"baud_rate" validate:"required" yaml:"baud_rate"`
	DataBits int    `mapstructure:"data_bits" yaml:"data_bits,omitempty"`
	StopBits int    `mapstructure:"stop_bits" yaml:"stop_bits,omitempty"`

	// Parity is one of N, E, O. Unknown values are rejected at validation
	// time rather than silently defaulting (§9 Open Question).
	Parity string `mapstructure:"parity" validate:"required,oneof=N E O" yaml:"parity"`
	UnitID byte   `mapstructure:"unit_id" validate:"required,gte=1,lte=247" yaml:"unit_id"`
}

// ModbusTcpAddressConfig addresses a device reachable over Modbus TCP.
type ModbusTcpAddressConfig struct {
	IP     string `mapstructure:"ip" validate:"required,ip" yaml:"ip"`
	Port   int    `mapstructure:"port" yaml:"port,omitempty"`
	UnitID byte   `mapstructure:"unit_id" validate:"required,gte=1,lte=247" yaml:"unit_id"`
}

// MappingTemplateConfig names a set of OCPP-variable <-> register bindings
// (§4.8, §6.4).
type MappingTemplateConfig struct {
	Name      string                   `mapstructure:"name" validate:"required" yaml:"name"`
	Variables []VariableMappingConfig  `mapstructure:"variables" validate:"dive" yaml:"variables"`
}

// VariableMappingConfig binds one named OCPP variable to a device register
// and its conversion rule.
type VariableMappingConfig struct {
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// DataType selects the conversion: bool, u8, i8, u16, i16, u32, i32,
	// u64, i64, f32, f64, string, binary, enum.
	DataType string `mapstructure:"data_type" validate:"required" yaml:"data_type"`

	// RegisterType is one of coil, discrete_input, input_register,
	// holding_register, epc.
	RegisterType string `mapstructure:"register_type" validate:"required,oneof=coil discrete_input input_register holding_register epc" yaml:"register_type"`

	// Address is the Modbus register address (Modbus devices only).
	Address uint32 `mapstructure:"address" yaml:"address,omitempty"`
	// Count is the register/bit count for the address.
	Count uint16 `mapstructure:"count" yaml:"count,omitempty"`

	// EojClassGroup, EojClass, EojInstance, Epc address an ECHONET Lite
	// property (ECHONET devices only).
	EojClassGroup byte `mapstructure:"eoj_class_group" yaml:"eoj_class_group,omitempty"`
	EojClass      byte `mapstructure:"eoj_class" yaml:"eoj_class,omitempty"`
	EojInstance   byte `mapstructure:"eoj_instance" yaml:"eoj_instance,omitempty"`
	Epc           byte `mapstructure:"epc" yaml:"epc,omitempty"`

	// Scale multiplies raw device values on the way to OCPP and divides OCPP
	// values on the way back: ocpp = raw * scale; device = ocpp / scale.
	Scale float64 `mapstructure:"scale" yaml:"scale,omitempty"`
	// Unit is a free-form unit label, surfaced in MeterValues sampled values.
	Unit string `mapstructure:"unit" yaml:"unit,omitempty"`
	// ReadOnly rejects writes to this variable with a Translation error.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only,omitempty"`
	// EnumMapping maps device integer codes to OCPP string values, for
	// data_type=enum.
	EnumMapping map[int]string `mapstructure:"enum_mapping" yaml:"enum_mapping,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !v.IsSet("ocpp_client.verify_peer") {
		cfg.OcppClient.VerifyPeer = true
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages, per the
// instructions a freshly deployed gateway prints when unconfigured.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please create a configuration file, or specify one:\n"+
				"  ocpp-gateway run --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("OCPPGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// allowing config files to use human-readable sizes like "1MB" or "512KB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, allowing config
// files to use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ocpp-gateway")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ocpp-gateway")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
