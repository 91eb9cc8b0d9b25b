package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kolosalai/agentruntime/internal/embedding"
)

// Config controls a Manager's bounds and cleanup cadence.
type Config struct {
	MaxMessages int // ConversationMemory bound; 0 uses the default of 100.
	// CleanupSchedule is a cron expression (default "@hourly") describing
	// how often VectorMemory.Cleanup runs in the background.
	CleanupSchedule string
	// CleanupMaxAge is the age threshold passed to VectorMemory.Cleanup.
	CleanupMaxAge time.Duration
}

func (c Config) withDefaults() Config {
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "@hourly"
	}
	if c.CleanupMaxAge <= 0 {
		c.CleanupMaxAge = 30 * 24 * time.Hour
	}
	return c
}

// Manager composes the three memory sub-stores for one agent (§4.3),
// serializing operations on each sub-store independently (I5). It also runs
// a recurring cleanup of VectorMemory on a cron schedule.
type Manager struct {
	Conversation *ConversationMemory
	Vector       *VectorMemory
	Working      *WorkingMemory

	cfg    Config
	logger *slog.Logger
	cron   *cron.Cron
}

// NewManager builds a Manager around the given embedding provider and config.
func NewManager(provider embedding.Provider, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Manager{
		Conversation: NewConversationMemory(cfg.MaxMessages),
		Vector:       NewVectorMemory(provider),
		Working:      NewWorkingMemory(),
		cfg:          cfg,
		logger:       logger.With("component", "memory_manager"),
	}
}

// StartScheduledCleanup starts the cron-driven background cleanup of
// VectorMemory. Stop must be called to release the cron scheduler.
func (m *Manager) StartScheduledCleanup() error {
	c := cron.New()
	_, err := c.AddFunc(m.cfg.CleanupSchedule, func() {
		removed := m.Vector.Cleanup(m.cfg.CleanupMaxAge)
		if removed > 0 {
			m.logger.Info("scheduled memory cleanup removed entries", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("memory: invalid cleanup schedule %q: %w", m.cfg.CleanupSchedule, err)
	}
	m.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduled cleanup (if running) and clears working memory,
// per the agent-stop contract in §4.3.
func (m *Manager) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
		m.cron = nil
	}
	m.Working.Clear()
}

// envelope is the JSON wire format produced by Serialize and consumed by
// Deserialize.
type envelope struct {
	Messages []ConversationMessage `json:"messages"`
	Entries  []Entry               `json:"entries"`
}

// Serialize captures Conversation and Vector state as a JSON envelope.
// WorkingMemory is intentionally excluded: it is non-persistent by contract.
func (m *Manager) Serialize() ([]byte, error) {
	env := envelope{
		Messages: m.Conversation.All(),
		Entries:  m.Vector.snapshot(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("memory: serializing: %w", err)
	}
	return data, nil
}

// Deserialize restores Conversation and Vector state from a previously
// serialized envelope, replacing current contents.
func (m *Manager) Deserialize(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("memory: deserializing: %w", err)
	}

	m.Conversation.mu.Lock()
	m.Conversation.messages = append([]ConversationMessage(nil), env.Messages...)
	if len(m.Conversation.messages) > m.Conversation.maxMessages {
		m.Conversation.messages = m.Conversation.messages[len(m.Conversation.messages)-m.Conversation.maxMessages:]
	}
	m.Conversation.mu.Unlock()

	m.Vector.restore(env.Entries)
	return nil
}

// Recall is a convenience wrapper used by the agent's recall-memories
// operation: it runs a semantic search when text is non-empty, otherwise
// falls back to a filtered Search.
func (m *Manager) Recall(ctx context.Context, q Query, semanticText string, k int) ([]Entry, error) {
	if semanticText != "" {
		return m.Vector.SemanticSearch(ctx, semanticText, k)
	}
	return m.Vector.Search(q), nil
}
