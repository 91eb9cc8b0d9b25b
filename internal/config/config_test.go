package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
agents:
  - id: a1
    name: Coordinator
    role: COORDINATOR
`
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Port != 8420 {
		t.Errorf("expected default port 8420, got %d", cfg.System.Port)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].ID != "a1" {
		t.Fatalf("unexpected agents: %+v", cfg.Agents)
	}
}

func TestLoadRejectsDuplicateAgentIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
agents:
  - id: dup
    name: A
  - id: dup
    name: B
`
	os.WriteFile(path, []byte(body), 0o640)

	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate agent id to fail validation")
	}
}

func TestUnknownKeysWarns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "weird_top_level_key: true\nsystem:\n  port: 1\n"
	os.WriteFile(path, []byte(body), 0o640)

	unknown, err := UnknownKeys(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(unknown) != 1 || unknown[0] != "weird_top_level_key" {
		t.Fatalf("expected one unknown key, got %v", unknown)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := DefaultConfig()
	cfg.Agents = append(cfg.Agents, AgentConfig{ID: "x", Name: "X"})
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Agents) != 1 || reloaded.Agents[0].ID != "x" {
		t.Fatalf("round trip lost agents: %+v", reloaded.Agents)
	}
}

func TestLoadParsesMQTTSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
system:
  memory_store_path: /tmp/memory.db
  config_watch_interval_sec: 30
  mqtt:
    broker: broker.local
    port: 1884
    client_id: runtime-1
`
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.MQTT.Broker != "broker.local" || cfg.System.MQTT.Port != 1884 {
		t.Fatalf("unexpected mqtt section: %+v", cfg.System.MQTT)
	}
	if cfg.System.MemoryStorePath != "/tmp/memory.db" {
		t.Fatalf("unexpected memory store path: %q", cfg.System.MemoryStorePath)
	}
	if cfg.System.ConfigWatchIntervalSec != 30 {
		t.Fatalf("unexpected config watch interval: %d", cfg.System.ConfigWatchIntervalSec)
	}
}
