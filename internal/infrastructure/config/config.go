package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for grayhub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Observers ObserversConfig `yaml:"observers"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig contains the upstream hub websocket connection settings.
type HubConfig struct {
	// URL is the hub websocket endpoint, e.g. ws://homeassistant.local:8123/api/websocket.
	URL string `yaml:"url"`

	// Token is the long-lived access token sent in the auth handshake.
	Token string `yaml:"token"`

	// MaxMessageSize bounds inbound frames in bytes. get_states replies on
	// large installations are several megabytes.
	MaxMessageSize int `yaml:"max_message_size"`

	// PingInterval and PongTimeout are in seconds.
	PingInterval int `yaml:"ping_interval"`
	PongTimeout  int `yaml:"pong_timeout"`

	// RequestTimeout bounds handshake steps and Call round trips (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// EventTypes limits subscribe_events to these types. Empty subscribes
	// to every event.
	EventTypes []string `yaml:"event_types"`

	// TokenExpiryWarning warns at startup when the token expires within
	// this many hours. Zero disables the check.
	TokenExpiryWarning int `yaml:"token_expiry_warning"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains exponential backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// ObserversConfig contains observer dispatch settings.
type ObserversConfig struct {
	// Workers bounds concurrently running sync observer invocations.
	// Zero means four per CPU.
	Workers int `yaml:"workers"`

	// HistorySize is the number of states kept per entity.
	HistorySize int `yaml:"history_size"`
}

// DatabaseConfig contains the SQLite command audit database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the state mirror.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
	Reconnect   ReconnectConfig  `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains the HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// Token is the bearer token required by service calls and the
	// websocket stream. Empty leaves those routes open.
	Token string `yaml:"token"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig contains the API websocket stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// Attributes lists the numeric attributes recorded next to numeric states.
	Attributes []string `yaml:"attributes"`
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
// Environment variables follow the pattern: GRAYHUB_SECTION_KEY
// For example: GRAYHUB_HUB_TOKEN, GRAYHUB_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			URL:                "ws://localhost:8123/api/websocket",
			MaxMessageSize:     16 << 20, //nolint:mnd // 16 MiB
			PingInterval:       30,
			PongTimeout:        10,
			RequestTimeout:     10,
			TokenExpiryWarning: 72,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Observers: ObserversConfig{
			HistorySize: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/grayhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "grayhub",
			},
			QoS:         1,
			TopicPrefix: "grayhub",
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
			Attributes:    []string{"volume_level", "power_consumption", "current_position"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("GRAYHUB_HUB_URL"); v != "" {
		cfg.Hub.URL = v
	}
	if v := os.Getenv("GRAYHUB_HUB_TOKEN"); v != "" {
		cfg.Hub.Token = v
	}

	// Observers
	if v, err := strconv.Atoi(os.Getenv("GRAYHUB_OBSERVERS_WORKERS")); err == nil {
		cfg.Observers.Workers = v
	}

	// Database
	if v := os.Getenv("GRAYHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, err := strconv.Atoi(os.Getenv("GRAYHUB_API_PORT")); err == nil {
		cfg.API.Port = v
	}
	if v := os.Getenv("GRAYHUB_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	// Hub validation
	if u, err := url.Parse(c.Hub.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "hub.url must be a ws:// or wss:// URL")
	}
	if c.Hub.Token == "" {
		errs = append(errs, "hub.token is required (set GRAYHUB_HUB_TOKEN environment variable)")
	}
	if c.Hub.PingInterval <= 0 || c.Hub.PongTimeout <= 0 {
		errs = append(errs, "hub.ping_interval and hub.pong_timeout must be positive")
	}
	if c.Hub.Reconnect.InitialDelay <= 0 || c.Hub.Reconnect.MaxDelay < c.Hub.Reconnect.InitialDelay {
		errs = append(errs, "hub.reconnect delays must be positive with max_delay >= initial_delay")
	}

	// Observers validation
	if c.Observers.HistorySize < 2 { //nolint:mnd // current plus previous
		errs = append(errs, "observers.history_size must be at least 2")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the audit log is enabled")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		ws := c.API.WebSocket
		if ws.MaxMessageSize <= 0 || ws.PingInterval <= 0 || ws.PongTimeout <= 0 {
			errs = append(errs, "api.websocket settings must be positive")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
