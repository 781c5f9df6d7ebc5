package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nicktill/heatcycle/pkg/config"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string // e.g. tcp://core-mosquitto:1883
	ClientID string
	Username string
	Password string
	Topic    string
}

// Publisher is the slice of mqtt.Client the notifier uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes events as JSON to an MQTT topic. Subscribers such
// as Home Assistant automations can react to new datasets.
type MQTTNotifier struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

// DialMQTT connects to the broker and returns a notifier publishing to
// cfg.Topic.
func DialMQTT(cfg MQTTConfig) (*MQTTNotifier, mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, nil, errors.New("mqtt broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = config.DefaultMQTTClientID
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(config.MQTTConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(config.MQTTConnectTimeout) {
		return nil, nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	log.Printf("Connected to MQTT broker %s", cfg.Broker)

	return NewMQTTNotifier(client, cfg.Topic), client, nil
}

// NewMQTTNotifier wraps an already connected client.
func NewMQTTNotifier(client Publisher, topic string) *MQTTNotifier {
	if topic == "" {
		topic = config.DefaultMQTTTopic
	}
	return &MQTTNotifier{
		client:  client,
		topic:   topic,
		timeout: config.MQTTPublishTimeout,
	}
}

// Topic returns the topic for an event: <base>/<event type>.
func (n *MQTTNotifier) Topic(ev Event) string {
	return n.topic + "/" + ev.Type
}

// Notify implements Notifier with QoS 1, not retained.
func (n *MQTTNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	token := n.client.Publish(n.Topic(ev), 1, false, payload)
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
