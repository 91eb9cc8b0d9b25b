package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kolosalai/agentruntime/internal/embedding"
)

func TestManagerSerializeDeserializeRoundTrip(t *testing.T) {
	m := NewManager(embedding.NewHashEmbedder(16), Config{}, nil)
	m.Conversation.AddMessage("user", "hello", nil)
	ctx := context.Background()
	if _, err := m.Vector.Store(ctx, "a fact to remember", TypeFact, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	restored := NewManager(embedding.NewHashEmbedder(16), Config{}, nil)
	if err := restored.Deserialize(data); err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}

	if restored.Conversation.Len() != 1 {
		t.Fatalf("expected 1 restored message, got %d", restored.Conversation.Len())
	}
	if restored.Vector.Len() != 1 {
		t.Fatalf("expected 1 restored vector entry, got %d", restored.Vector.Len())
	}
}

func TestManagerStartStopScheduledCleanup(t *testing.T) {
	m := NewManager(embedding.NewHashEmbedder(8), Config{CleanupSchedule: "@every 1h"}, nil)
	if err := m.StartScheduledCleanup(); err != nil {
		t.Fatalf("unexpected error starting scheduled cleanup: %v", err)
	}
	m.Working.SetCurrentTask("in progress")
	m.Stop()
	if m.Working.CurrentTask() != "" {
		t.Fatal("expected working memory cleared on Stop")
	}
}

func TestManagerStartScheduledCleanupRejectsBadSchedule(t *testing.T) {
	m := NewManager(embedding.NewHashEmbedder(8), Config{CleanupSchedule: "not a cron expression"}, nil)
	if err := m.StartScheduledCleanup(); err == nil {
		t.Fatal("expected invalid cron expression to be rejected")
	}
}

func TestManagerRecallSemanticVsFiltered(t *testing.T) {
	m := NewManager(embedding.NewHashEmbedder(16), Config{}, nil)
	ctx := context.Background()
	m.Vector.Store(ctx, "paris is the capital of france", TypeFact, map[string]string{"topic": "geo"})
	m.Vector.Store(ctx, "tokyo is the capital of japan", TypeFact, map[string]string{"topic": "geo"})

	results, err := m.Recall(ctx, Query{}, "paris is the capital of france", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 semantic result, got %d", len(results))
	}

	results, err = m.Recall(ctx, Query{Metadata: map[string]string{"topic": "geo"}}, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 filtered results, got %d", len(results))
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.CleanupSchedule != "@hourly" {
		t.Fatalf("expected default cleanup schedule @hourly, got %q", cfg.CleanupSchedule)
	}
	if cfg.CleanupMaxAge != 30*24*time.Hour {
		t.Fatalf("unexpected default cleanup max age: %v", cfg.CleanupMaxAge)
	}
}
