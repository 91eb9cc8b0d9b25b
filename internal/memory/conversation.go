package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ConversationMessage is one turn in a ConversationMemory.
type ConversationMessage struct {
	Role      string // "user", "assistant", or "system"
	Content   string
	Metadata  map[string]string
	Timestamp time.Time
}

// ConversationMemory is a bounded, append-only sequence of messages (§4.3).
// When the sequence exceeds maxMessages, the oldest entries are dropped.
type ConversationMemory struct {
	mu          sync.RWMutex
	messages    []ConversationMessage
	maxMessages int
}

const defaultMaxMessages = 100

// NewConversationMemory creates a conversation log bounded to maxMessages
// entries (defaulting to 100 when maxMessages <= 0).
func NewConversationMemory(maxMessages int) *ConversationMemory {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &ConversationMemory{maxMessages: maxMessages}
}

// AddMessage appends a message, evicting the oldest entry if the bound is
// exceeded.
func (c *ConversationMemory) AddMessage(role, content string, metadata map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, ConversationMessage{
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
	if len(c.messages) > c.maxMessages {
		c.messages = c.messages[len(c.messages)-c.maxMessages:]
	}
}

// Len returns the current number of retained messages.
func (c *ConversationMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// All returns a copy of every retained message, oldest first.
func (c *ConversationMemory) All() []ConversationMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ConversationMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// ContextWindow returns the most recent messages concatenated newest-last,
// trimmed at message boundaries to fit within maxChars (§4.3). It never
// splits a message in the middle: if even the single newest message exceeds
// maxChars, that message is returned alone.
func (c *ConversationMemory) ContextWindow(maxChars int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.messages) == 0 || maxChars <= 0 {
		return ""
	}

	var picked []string
	total := 0
	for i := len(c.messages) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s", c.messages[i].Role, c.messages[i].Content)
		if total+len(line) > maxChars && len(picked) > 0 {
			break
		}
		picked = append(picked, line)
		total += len(line)
		if total >= maxChars {
			break
		}
	}

	// picked was built newest-first; reverse for newest-last ordering.
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return strings.Join(picked, "\n")
}

// Clear discards all retained messages.
func (c *ConversationMemory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
