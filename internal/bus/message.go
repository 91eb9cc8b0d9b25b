// Package bus implements the process-wide MessageRouter (§4.2): a FIFO,
// best-effort, at-most-once delivery bus between registered agent handlers.
package bus

import (
	"time"

	"github.com/google/uuid"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

// Broadcast is the sentinel destination meaning "every registered agent
// except the sender" (§3 AgentMessage.to).
const Broadcast = "*"

// Message is the AgentMessage record from §3.
type Message struct {
	ID      string
	From    string
	To      string // an agent id, or Broadcast
	Type    string
	Payload agentdata.Data
	SentAt  time.Time
}

// NewMessage stamps a fresh id and send time on a message.
func NewMessage(from, to, msgType string, payload agentdata.Data) Message {
	return Message{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Type:    msgType,
		Payload: payload,
		SentAt:  time.Now(),
	}
}

// Handler receives messages delivered to a registered agent. It runs on the
// router's dispatcher goroutine, never the sender's (§4.2).
type Handler func(Message)
