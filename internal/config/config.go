package config

import (
	"time"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/monitor"
)

// SerialConfig controls how actuator links open and drive their ports.
type SerialConfig struct {
	BaudRate    int           `yaml:"baudRate"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	SettleDelay time.Duration `yaml:"settleDelay"`
}

// MonitorConfig controls the telemetry polling loop and its event
// thresholds.
type MonitorConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Mode         string        `yaml:"mode"`
	Device       string        `yaml:"device"`
	Interval     time.Duration `yaml:"interval"`
	AbruptJerk   float64       `yaml:"abruptJerk"`
	ModerateJerk float64       `yaml:"moderateJerk"`
	PedalLevel   float64       `yaml:"pedalLevel"`
}

// AuthConfig controls JWT verification on the HTTP API. When Enabled
// is false every request is accepted without a token.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Algorithm    string `yaml:"algorithm"`
	Secret       string `yaml:"secret"`
	PublicKeyPEM string `yaml:"publicKeyPem"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	Auth         AuthConfig    `yaml:"auth"`
}

// MQTTConfig controls the optional status bridge that mirrors
// connection snapshots to an MQTT broker.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientId"`
}

// FeedConfig controls the live status stream.
type FeedConfig struct {
	Heartbeat time.Duration `yaml:"heartbeat"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
}

// AuditConfig controls the command audit log.
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controls application logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the full runtime configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Monitor MonitorConfig `yaml:"monitor"`
	API     APIConfig     `yaml:"api"`
	Feed    FeedConfig    `yaml:"feed"`
	Audit   AuditConfig   `yaml:"audit"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the built-in configuration baseline. Serial and
// monitor values track the constants the actuator and monitor
// packages ship with.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:    actuator.DefaultBaudRate,
			ReadTimeout: actuator.DefaultReadTimeout,
			SettleDelay: actuator.DefaultSettleDelay,
		},
		Monitor: MonitorConfig{
			Enabled:      false,
			Mode:         string(monitor.ModeGearAccel),
			Interval:     monitor.DefaultInterval,
			AbruptJerk:   0.5,
			ModerateJerk: 0.2,
			PedalLevel:   0.1,
		},
		API: APIConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			Auth: AuthConfig{
				Enabled:   false,
				Algorithm: "HS256",
			},
		},
		Feed: FeedConfig{
			Heartbeat: 15 * time.Second,
			MQTT: MQTTConfig{
				Enabled:  false,
				Broker:   "tcp://localhost:1883",
				Topic:    "mcc/status",
				ClientID: "mcc-bridge",
			},
		},
		Audit: AuditConfig{
			Dir: "logs",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
