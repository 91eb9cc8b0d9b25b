package memory

import "testing"

func TestConversationMemoryBounded(t *testing.T) {
	c := NewConversationMemory(3)
	c.AddMessage("user", "one", nil)
	c.AddMessage("assistant", "two", nil)
	c.AddMessage("user", "three", nil)
	c.AddMessage("assistant", "four", nil)

	all := c.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 retained messages, got %d", len(all))
	}
	if all[0].Content != "two" {
		t.Fatalf("expected oldest message to have been dropped, got %q first", all[0].Content)
	}
}

func TestConversationMemoryContextWindow(t *testing.T) {
	c := NewConversationMemory(10)
	c.AddMessage("user", "short", nil)
	c.AddMessage("assistant", "a reasonably long reply that takes up space", nil)

	window := c.ContextWindow(20)
	if window == "" {
		t.Fatal("expected non-empty context window")
	}
	if len(window) > 60 {
		t.Fatalf("context window grew suspiciously large: %d chars", len(window))
	}
}

func TestConversationMemoryContextWindowSingleOversizedMessage(t *testing.T) {
	c := NewConversationMemory(10)
	c.AddMessage("user", "this single message is longer than the budget allows", nil)

	window := c.ContextWindow(5)
	if window == "" {
		t.Fatal("expected the lone oversized message to still be returned")
	}
}

func TestConversationMemoryClear(t *testing.T) {
	c := NewConversationMemory(10)
	c.AddMessage("user", "hi", nil)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty after clear, got %d", c.Len())
	}
}
