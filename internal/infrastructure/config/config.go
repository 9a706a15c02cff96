package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the DALI bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig    `yaml:"bridge"`
	Gateways []GatewayConfig `yaml:"gateways"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Database DatabaseConfig  `yaml:"database"`
	InfluxDB InfluxDBConfig  `yaml:"influxdb"`
	API      APIConfig       `yaml:"api"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance on the Gray Logic bus.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// HealthInterval is the seconds between health reports on the bus.
	HealthInterval int `yaml:"health_interval"`
}

// GatewayConfig contains connection settings for one DALI Center gateway.
//
// Each gateway runs its own MQTT broker; the bridge maintains an independent
// connection per gateway with its own state machine and reconnection schedule.
type GatewayConfig struct {
	// SerialNumber is the gateway serial (e.g., "DA0C8E5A6B21").
	// It scopes device IDs, bus topics and the broker client ID.
	SerialNumber string `yaml:"serial_number"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Name is a human-readable label, shown in health reports and the API.
	Name string `yaml:"name"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings for a gateway link.
type ReconnectConfig struct {
	// InitialDelay is the first retry delay in seconds. Doubles per failure.
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the retry delay in seconds.
	MaxDelay int `yaml:"max_delay"`
}

// MQTTConfig contains Gray Logic bus broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	Reconnect ReconnectConfig  `yaml:"reconnect"`
}

// MQTTBrokerConfig contains bus broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains bus broker authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for measurement export.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DALIBRIDGE_SECTION_KEY
// For example: DALIBRIDGE_DATABASE_PATH, DALIBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply per-gateway defaults that YAML unmarshalling can't express
	applyGatewayDefaults(cfg)

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default reconnection backoff bounds in seconds.
// These match the gateway connection manager's retry schedule
// (1, 2, 4, 8, 16, 32, 60, 60, ...).
const (
	defaultReconnectInitialDelay = 1
	defaultReconnectMaxDelay     = 60
)

// defaultGatewayPort is the MQTT port DALI Center gateways listen on.
const defaultGatewayPort = 1883

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "dali-bridge-01",
			Name:           "DALI Bridge",
			HealthInterval: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-dali-bridge",
			},
			QoS: 1,
			Reconnect: ReconnectConfig{
				InitialDelay: defaultReconnectInitialDelay,
				MaxDelay:     defaultReconnectMaxDelay,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/dali-bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyGatewayDefaults fills zero-valued gateway fields after unmarshalling.
func applyGatewayDefaults(cfg *Config) {
	for i := range cfg.Gateways {
		gw := &cfg.Gateways[i]
		if gw.Port == 0 {
			gw.Port = defaultGatewayPort
		}
		if gw.Reconnect.InitialDelay == 0 {
			gw.Reconnect.InitialDelay = defaultReconnectInitialDelay
		}
		if gw.Reconnect.MaxDelay == 0 {
			gw.Reconnect.MaxDelay = defaultReconnectMaxDelay
		}
		if gw.Name == "" {
			gw.Name = gw.SerialNumber
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DALIBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DALIBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Bus MQTT
	if v := os.Getenv("DALIBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DALIBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DALIBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DALIBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DALIBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("DALIBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("DALIBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// Gateway validation
	if len(c.Gateways) == 0 {
		errs = append(errs, "at least one gateway must be configured")
	}
	seen := make(map[string]bool)
	for i, gw := range c.Gateways {
		if gw.SerialNumber == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].serial_number is required", i))
		}
		if gw.Host == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].host is required", i))
		}
		if gw.Port < 1 || gw.Port > 65535 {
			errs = append(errs, fmt.Sprintf("gateways[%d].port must be 1-65535", i))
		}
		if seen[gw.SerialNumber] {
			errs = append(errs, fmt.Sprintf("gateways[%d].serial_number %q is duplicated", i, gw.SerialNumber))
		}
		seen[gw.SerialNumber] = true
		if gw.Reconnect.InitialDelay > gw.Reconnect.MaxDelay {
			errs = append(errs, fmt.Sprintf("gateways[%d].reconnect.initial_delay exceeds max_delay", i))
		}
	}

	// Bus MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be 1-65535")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Gateway returns the configuration for a gateway by serial number.
//
// Returns:
//   - *GatewayConfig: The matching gateway config
//   - bool: false if no gateway with that serial is configured
func (c *Config) Gateway(serialNumber string) (*GatewayConfig, bool) {
	for i := range c.Gateways {
		if c.Gateways[i].SerialNumber == serialNumber {
			return &c.Gateways[i], true
		}
	}
	return nil, false
}
