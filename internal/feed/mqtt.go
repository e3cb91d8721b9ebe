package feed

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/registry"
)

// BridgeConfig configures the MQTT status bridge.
type BridgeConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// Bridge mirrors registry snapshots to an MQTT topic. Publishes are
// fire-and-forget at QoS 0; the broker connection auto-reconnects.
type Bridge struct {
	log    *logrus.Entry
	client mqtt.Client
	topic  string
}

// NewBridge connects to the broker and returns a bridge ready to
// publish. Connection failure is returned rather than retried so the
// caller decides whether the bridge is mandatory.
func NewBridge(cfg BridgeConfig, log *logrus.Logger) (*Bridge, error) {
	entry := log.WithField("component", "mqtt-bridge")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		entry.WithField("broker", cfg.Broker).Info("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		entry.WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &Bridge{
		log:    entry,
		client: client,
		topic:  cfg.Topic,
	}, nil
}

// Publish sends the snapshot as JSON. It satisfies registry.Listener.
func (b *Bridge) Publish(snap registry.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.log.WithError(err).Error("failed to marshal status snapshot")
		return
	}
	b.client.Publish(b.topic, 0, false, payload)
}

// Close disconnects from the broker, allowing in-flight publishes a
// short grace period.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}
