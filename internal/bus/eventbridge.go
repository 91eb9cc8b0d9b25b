package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	directTopicFmt = "agentruntime/agents/%s/messages"
	broadcastTopic = "agentruntime/broadcast"
)

// MQTTClient is the subset of the paho client MQTTEventBridge depends on,
// narrowed for testability (mirrors the source channel adapter's pattern).
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesceMs uint)
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	IsConnected() bool
}

// MQTTEventBridge is the reference EventSink (§4.2): it publishes every
// dispatched message to an MQTT broker, giving external tooling a read-only
// tap without joining the delivery path. A publish failure is logged and
// otherwise ignored.
type MQTTEventBridge struct {
	client MQTTClient
	logger *slog.Logger
}

// NewMQTTEventBridge wires an EventSink around an already-connected MQTT client.
func NewMQTTEventBridge(client MQTTClient, logger *slog.Logger) *MQTTEventBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTEventBridge{client: client, logger: logger.With("component", "event_bridge")}
}

type wireMessage struct {
	ID      string         `json:"id"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// Publish implements EventSink.
func (b *MQTTEventBridge) Publish(msg Message) {
	if b.client == nil || !b.client.IsConnected() {
		return
	}

	topic := broadcastTopic
	if msg.To != Broadcast {
		topic = fmt.Sprintf(directTopicFmt, msg.To)
	}

	payload := make(map[string]any, len(msg.Payload))
	for k, v := range msg.Payload {
		payload[k] = v
	}

	data, err := json.Marshal(wireMessage{
		ID:      msg.ID,
		From:    msg.From,
		To:      msg.To,
		Type:    msg.Type,
		Payload: payload,
		SentAt:  msg.SentAt,
	})
	if err != nil {
		b.logger.Warn("failed to marshal event for mqtt bridge", "error", err)
		return
	}

	token := b.client.Publish(topic, 0, false, data)
	if token.WaitTimeout(2 * time.Second) {
		if err := token.Error(); err != nil {
			b.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}
}
