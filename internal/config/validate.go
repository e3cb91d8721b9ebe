package config

import (
	"fmt"

	"github.com/motion-control/mcc/internal/monitor"
	"github.com/sirupsen/logrus"
)

// Validate enforces cross-field rules on the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateSerial(&cfg.Serial); err != nil {
		return fmt.Errorf("serial validation failed: %w", err)
	}
	if err := validateMonitor(&cfg.Monitor); err != nil {
		return fmt.Errorf("monitor validation failed: %w", err)
	}
	if err := validateAPI(&cfg.API); err != nil {
		return fmt.Errorf("api validation failed: %w", err)
	}
	if err := validateFeed(&cfg.Feed); err != nil {
		return fmt.Errorf("feed validation failed: %w", err)
	}
	if cfg.Audit.Dir == "" {
		return fmt.Errorf("audit validation failed: dir must not be empty")
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log validation failed: unknown level %q", cfg.Log.Level)
	}

	return nil
}

func validateSerial(cfg *SerialConfig) error {
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", cfg.BaudRate)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("settle delay must be non-negative, got %v", cfg.SettleDelay)
	}
	return nil
}

func validateMonitor(cfg *MonitorConfig) error {
	switch monitor.Mode(cfg.Mode) {
	case monitor.ModeGearAccel, monitor.ModePedal:
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.ModerateJerk <= 0 {
		return fmt.Errorf("moderate jerk threshold must be positive, got %v", cfg.ModerateJerk)
	}
	if cfg.AbruptJerk <= cfg.ModerateJerk {
		return fmt.Errorf("abrupt jerk threshold %v must exceed moderate threshold %v", cfg.AbruptJerk, cfg.ModerateJerk)
	}
	if cfg.PedalLevel < 0 || cfg.PedalLevel >= 1 {
		return fmt.Errorf("pedal level must be in [0, 1), got %v", cfg.PedalLevel)
	}
	return nil
}

func validateAPI(cfg *APIConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if cfg.Auth.Enabled {
		switch cfg.Auth.Algorithm {
		case "HS256":
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret required for HS256")
			}
		case "RS256":
			if cfg.Auth.PublicKeyPEM == "" {
				return fmt.Errorf("auth public key required for RS256")
			}
		default:
			return fmt.Errorf("unknown auth algorithm %q", cfg.Auth.Algorithm)
		}
	}
	return nil
}

func validateFeed(cfg *FeedConfig) error {
	if cfg.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive, got %v", cfg.Heartbeat)
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker must not be empty")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt topic must not be empty")
		}
	}
	return nil
}
