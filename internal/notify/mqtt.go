package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/dj-oyu/people-count-monitor/internal/config"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
)

// mqttPublisher is the part of mqtt.Client used for alerts
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// AlertPayload is the JSON body published on the alert topic
type AlertPayload struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// MQTT publishes alerts to a broker topic
type MQTT struct {
	client mqttPublisher
	topic  string
	now    func() time.Time
}

// ConnectMQTT connects to the broker with auto-reconnect enabled
func ConnectMQTT(ctx context.Context, cfg config.MQTTConfig) (*MQTT, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("Notify", "MQTT connection established to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("Notify", "MQTT connection lost, will auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		// SetConnectRetry keeps trying in the background
		logger.Warn("Notify", "MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
		return NewMQTT(client, cfg.Topic), nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return NewMQTT(client, cfg.Topic), nil
}

// NewMQTT wraps a connected client
func NewMQTT(client mqttPublisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic, now: time.Now}
}

// Name implements Notifier
func (m *MQTT) Name() string { return "MQTT" }

// Send publishes message at QoS 1
func (m *MQTT) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(AlertPayload{
		ID:        uuid.NewString(),
		Timestamp: m.now(),
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
