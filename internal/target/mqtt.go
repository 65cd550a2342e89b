package target

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

// MQTTDescriptor addresses a light that accepts JSON set commands over
// MQTT, such as a zigbee2mqtt device ("zigbee2mqtt/<name>/set").
type MQTTDescriptor struct {
	Type     string `json:"type"`
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	QoS      byte   `json:"qos,omitempty"`
	Retain   bool   `json:"retain,omitempty"`
}

func (d MQTTDescriptor) validate() error {
	if d.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if !strings.Contains(d.Broker, "://") {
		return fmt.Errorf("mqtt: broker %q must include a scheme (tcp://, ssl://, ws://)", d.Broker)
	}
	if d.Topic == "" {
		return fmt.Errorf("mqtt: topic is required")
	}
	if d.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	return nil
}

// mqttPayload is the zigbee2mqtt light command schema.
type mqttPayload struct {
	State      string     `json:"state"`
	Brightness *int       `json:"brightness,omitempty"`
	Color      *mqttColor `json:"color,omitempty"`
}

type mqttColor struct {
	Hex string `json:"hex"`
}

// MQTT publishes light commands to a broker.
type MQTT struct {
	desc MQTTDescriptor

	mu     sync.Mutex
	client pahomqtt.Client
}

// NewMQTT creates an MQTT transport. The broker connection is opened lazily.
func NewMQTT(desc MQTTDescriptor) *MQTT {
	if desc.ClientID == "" {
		desc.ClientID = "statuslight-" + uuid.NewString()[:8]
	}
	return &MQTT{desc: desc}
}

// Name implements Transport.
func (m *MQTT) Name() string {
	return "mqtt:" + m.desc.Topic
}

// Send implements Transport.
func (m *MQTT) Send(ctx context.Context, cmd Command) error {
	payload, err := encodeMQTTPayload(cmd)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}

	token := client.Publish(m.desc.Topic, m.desc.QoS, m.desc.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", m.desc.Topic, err)
	}

	log.Debug().Str("topic", m.desc.Topic).RawJSON("payload", payload).Msg("Published light command")
	return nil
}

// Reset implements Transport.
func (m *MQTT) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Disconnect(mqttDisconnectQuiesce)
		m.client = nil
	}
}

func (m *MQTT) connect(ctx context.Context) (pahomqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(m.desc.Broker)
	opts.SetClientID(m.desc.ClientID)
	if m.desc.Username != "" {
		opts.SetUsername(m.desc.Username)
		opts.SetPassword(m.desc.Password)
	}
	opts.SetCleanSession(true)
	// Retries are owned by Retrying, not by paho.
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(mqttConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", m.desc.Broker, err)
	}

	m.client = client
	return client, nil
}

func encodeMQTTPayload(cmd Command) ([]byte, error) {
	if !cmd.Power {
		return json.Marshal(mqttPayload{State: "OFF"})
	}
	bri := int(math.Round(float64(cmd.Brightness) * 254 / 100))
	return json.Marshal(mqttPayload{
		State:      "ON",
		Brightness: &bri,
		Color:      &mqttColor{Hex: "#" + cmd.Color},
	})
}
