package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/motion-control/mcc/internal/actuator"
	"github.com/motion-control/mcc/internal/api"
	"github.com/motion-control/mcc/internal/audit"
	"github.com/motion-control/mcc/internal/auth"
	"github.com/motion-control/mcc/internal/config"
	"github.com/motion-control/mcc/internal/feed"
	"github.com/motion-control/mcc/internal/fleet"
	"github.com/motion-control/mcc/internal/monitor"
	"github.com/motion-control/mcc/internal/registry"
	"github.com/motion-control/mcc/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, status feed and optional telemetry monitor",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	log := logrus.StandardLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if logLevel == "" {
		if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
			log.SetLevel(level)
		}
	}

	auditLogger, err := audit.NewLogger(cfg.Audit.Dir)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize audit logger")
	}
	defer auditLogger.Close()

	reg := registry.New()

	hub := feed.NewHub(reg, cfg.Feed.Heartbeat, log)
	reg.AddListener(hub.Broadcast)
	defer hub.Stop()

	if cfg.Feed.MQTT.Enabled {
		bridge, err := feed.NewBridge(feed.BridgeConfig{
			Broker:   cfg.Feed.MQTT.Broker,
			Topic:    cfg.Feed.MQTT.Topic,
			ClientID: cfg.Feed.MQTT.ClientID,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect MQTT bridge")
		}
		reg.AddListener(bridge.Publish)
		defer bridge.Close()
	}

	manager := fleet.NewManager(linkFactory(cfg), reg, auditLogger, log)
	defer manager.Shutdown()

	var verifier *auth.Verifier
	if cfg.API.Auth.Enabled {
		verifier, err = auth.NewVerifier(auth.VerifierConfig{
			Algorithm:    cfg.API.Auth.Algorithm,
			Secret:       cfg.API.Auth.Secret,
			PublicKeyPEM: cfg.API.Auth.PublicKeyPEM,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize token verifier")
		}
	}

	server := api.NewServer(manager, hub, actuator.AvailablePorts,
		auth.NewMiddleware(verifier), api.ServerConfig{
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		}, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.API.Addr)
	}()

	var monitorHandle *monitor.Handle
	if cfg.Monitor.Enabled {
		monitorHandle = startMonitor(cfg, manager, reg, auditLogger, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	if monitorHandle != nil {
		monitorHandle.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.WithError(err).Error("failed to stop HTTP server cleanly")
	}
}

// linkFactory bakes the serial settings into new links.
func linkFactory(cfg *config.Config) fleet.LinkFactory {
	return func(device string) *actuator.Link {
		return actuator.NewLink(device, actuator.LinkConfig{
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.Serial.ReadTimeout,
			SettleDelay: cfg.Serial.SettleDelay,
		})
	}
}

// startMonitor connects the configured device and runs the telemetry
// loop against it. The simulated vehicle feed stands in for a live
// telemetry source.
func startMonitor(cfg *config.Config, manager *fleet.Manager, reg *registry.Registry, auditLogger *audit.Logger, log *logrus.Logger) *monitor.Handle {
	if cfg.Monitor.Device == "" {
		log.Warn("monitor enabled but no device configured, skipping")
		return nil
	}

	if err := manager.Connect(actuator.SlotLeft, cfg.Monitor.Device); err != nil {
		log.WithError(err).WithField("device", cfg.Monitor.Device).Fatal("failed to connect monitor device")
	}
	link, err := manager.Link(actuator.SlotLeft)
	if err != nil {
		log.WithError(err).Fatal("monitor link vanished after connect")
	}

	source := telemetry.NewSimSource(time.Now().UnixNano())
	m := monitor.New(source, link, monitor.Config{
		Mode:         monitor.Mode(cfg.Monitor.Mode),
		Interval:     cfg.Monitor.Interval,
		AbruptJerk:   cfg.Monitor.AbruptJerk,
		ModerateJerk: cfg.Monitor.ModerateJerk,
		PedalLevel:   cfg.Monitor.PedalLevel,
		Registry:     reg,
		Audit:        auditLogger,
	})
	return m.Start()
}
