package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when no explicit path is
// given.
const DefaultPath = "mcc.yaml"

// Load merges defaults, an optional YAML file, and MCC_* environment
// overrides, then validates the result. A missing file at the default
// path is not an error; a missing file at an explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes the YAML file over cfg, so any key the file
// omits keeps its current value.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// applyEnvOverrides applies MCC_* environment variables on top of the
// current configuration. Unparseable values are ignored so a stale
// environment cannot block startup.
func applyEnvOverrides(cfg *Config) {
	envInt("MCC_SERIAL_BAUD_RATE", &cfg.Serial.BaudRate)
	envDuration("MCC_SERIAL_READ_TIMEOUT", &cfg.Serial.ReadTimeout)
	envDuration("MCC_SERIAL_SETTLE_DELAY", &cfg.Serial.SettleDelay)

	envBool("MCC_MONITOR_ENABLED", &cfg.Monitor.Enabled)
	envString("MCC_MONITOR_MODE", &cfg.Monitor.Mode)
	envString("MCC_MONITOR_DEVICE", &cfg.Monitor.Device)
	envDuration("MCC_MONITOR_INTERVAL", &cfg.Monitor.Interval)
	envFloat("MCC_MONITOR_ABRUPT_JERK", &cfg.Monitor.AbruptJerk)
	envFloat("MCC_MONITOR_MODERATE_JERK", &cfg.Monitor.ModerateJerk)
	envFloat("MCC_MONITOR_PEDAL_LEVEL", &cfg.Monitor.PedalLevel)

	envString("MCC_API_ADDR", &cfg.API.Addr)
	envDuration("MCC_API_READ_TIMEOUT", &cfg.API.ReadTimeout)
	envDuration("MCC_API_WRITE_TIMEOUT", &cfg.API.WriteTimeout)
	envDuration("MCC_API_IDLE_TIMEOUT", &cfg.API.IdleTimeout)
	envBool("MCC_API_AUTH_ENABLED", &cfg.API.Auth.Enabled)
	envString("MCC_API_AUTH_ALGORITHM", &cfg.API.Auth.Algorithm)
	envString("MCC_API_AUTH_SECRET", &cfg.API.Auth.Secret)
	envString("MCC_API_AUTH_PUBLIC_KEY_PEM", &cfg.API.Auth.PublicKeyPEM)

	envDuration("MCC_FEED_HEARTBEAT", &cfg.Feed.Heartbeat)
	envBool("MCC_FEED_MQTT_ENABLED", &cfg.Feed.MQTT.Enabled)
	envString("MCC_FEED_MQTT_BROKER", &cfg.Feed.MQTT.Broker)
	envString("MCC_FEED_MQTT_TOPIC", &cfg.Feed.MQTT.Topic)
	envString("MCC_FEED_MQTT_CLIENT_ID", &cfg.Feed.MQTT.ClientID)

	envString("MCC_AUDIT_DIR", &cfg.Audit.Dir)
	envString("MCC_LOG_LEVEL", &cfg.Log.Level)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
