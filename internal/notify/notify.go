// Package notify announces finished colourisations to an MQTT broker so
// that other services can pick up new results without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Event describes one served request.
type Event struct {
	RequestID  string    `json:"request_id"`
	Key        string    `json:"key"`
	Location   string    `json:"location"`
	Identity   string    `json:"identity"`
	CacheHit   bool      `json:"cache_hit"`
	DurationMS int64     `json:"duration_ms"`
	Time       time.Time `json:"time"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() {}

// Config configures the MQTT publisher.
type Config struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes events as JSON.
type MQTT struct {
	client  publishClient
	topic   string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// Dial connects to cfg.Broker, reconnecting automatically afterwards.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return newMQTT(client, cfg, logger), nil
}

func newMQTT(client publishClient, cfg Config, logger *slog.Logger) *MQTT {
	return &MQTT{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: 5 * time.Second, logger: logger}
}

// Publish sends ev and waits for the broker to take it.
func (m *MQTT) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("mqtt publish to %s timed out", m.topic)
	}
}

// Close disconnects after letting in-flight messages drain.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
