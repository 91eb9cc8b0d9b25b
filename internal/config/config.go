// Package config loads and validates the runtime's declarative configuration
// file: system settings, agent definitions, function definitions, and
// inference-engine descriptors.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SystemConfig is the top-level parsed configuration record (§6A).
type SystemConfig struct {
	System           SystemSection       `yaml:"system"`
	Agents           []AgentConfig       `yaml:"agents"`
	Functions        []FunctionConfig    `yaml:"functions"`
	InferenceEngines []InferenceEngine   `yaml:"inference_engines"`
}

// SystemSection holds process-wide settings.
type SystemSection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	// JWTSecretEnv is read from the file but no component consults it: the
	// management API always takes its HS256 signing secret from the
	// KOLOSAL_JWT_SECRET environment variable.
	JWTSecretEnv string `yaml:"jwt_secret_env"`
	// HealthCheckIntervalSec configures the Supervisor's poll cadence.
	HealthCheckIntervalSec int `yaml:"health_check_interval_sec"`
	// AutoRecovery enables the Supervisor's bounded recovery actions.
	AutoRecovery bool `yaml:"auto_recovery"`
	// CORSPermissive is read from the file (default true) but no component
	// consults it: the ManagementAPI always sends wide-open CORS headers.
	CORSPermissive bool `yaml:"cors_permissive"`
	// JobStorePath, if set, enables the SQLite-backed job retention table
	// (C14). Empty disables it: job history then only covers the current
	// process's in-memory lookup.
	JobStorePath string `yaml:"job_store_path"`
	// JobRetention is the max terminal jobs kept per agent in the retention
	// table; <= 0 defaults to 1000 (see jobs.OpenSQLiteStore).
	JobRetention int `yaml:"job_retention"`
	// EmbeddingDim sizes the default hash embedder when no external
	// embedding provider is configured.
	EmbeddingDim int `yaml:"embedding_dim"`
	// MemoryStorePath, if set, opens the SQLite-backed FTS5+vector hybrid
	// memory store and wires it to the retrieval builtin. Empty disables it:
	// retrieval then always fails with a dependency error.
	MemoryStorePath string `yaml:"memory_store_path"`
	// MQTT enables the MQTTEventBridge (C12) when Broker is non-empty,
	// publishing every dispatched message to the broker for external
	// observers. Empty Broker disables the bridge entirely.
	MQTT MQTTSection `yaml:"mqtt"`
	// ConfigWatchIntervalSec enables polling the config file for out-of-band
	// edits when > 0; a detected change triggers the same stop-all-then-
	// recreate reload as POST /v1/system/reload. 0 disables the watcher.
	ConfigWatchIntervalSec int `yaml:"config_watch_interval_sec"`
}

// MQTTSection configures the optional MQTT event bridge (C12, §4.2).
type MQTTSection struct {
	// Broker is the MQTT broker hostname; empty disables the bridge.
	Broker string `yaml:"broker"`
	// Port defaults to 1883 when unset.
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AgentConfig is the declarative record for a single agent (§3).
type AgentConfig struct {
	ID                 string            `yaml:"id" json:"id"`
	Name               string            `yaml:"name" json:"name"`
	Type               string            `yaml:"type" json:"type"`
	Role               string            `yaml:"role" json:"role"`
	Capabilities       []string          `yaml:"capabilities" json:"capabilities"`
	Functions          []string          `yaml:"functions" json:"functions"`
	AutoStart          bool              `yaml:"auto_start" json:"auto_start"`
	MaxConcurrentTasks int               `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	MemoryLimit        int               `yaml:"memory_limit" json:"memory_limit"`
	Options            map[string]string `yaml:"options" json:"options"`
}

// Roles enumerated by the spec (§3). Role is free-form at the storage layer;
// these are the values the reference configuration uses, and Validate does
// not check them.
const (
	RoleCoordinator = "COORDINATOR"
	RoleAnalyst     = "ANALYST"
	RoleExecutor    = "EXECUTOR"
	RoleSpecialist  = "SPECIALIST"
	RoleGeneric     = "GENERIC"
)

// FunctionParameter describes one parameter of a FunctionConfig (§3 FunctionSchema).
type FunctionParameter struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // string,int,float,bool,array,object
	Required bool     `yaml:"required"`
	Default  string   `yaml:"default,omitempty"`
	Enum     []string `yaml:"enum,omitempty"`
}

// FunctionConfig is the declarative description of a registrable function.
type FunctionConfig struct {
	Name        string              `yaml:"name"`
	Type        string              `yaml:"type"`
	Description string              `yaml:"description"`
	Category    string              `yaml:"category"`
	Parameters  []FunctionParameter `yaml:"parameters"`
}

// InferenceEngine describes an external inference backend the Supervisor
// polls for health and may restart as a subprocess.
type InferenceEngine struct {
	Name           string `yaml:"name"`
	ExecutablePath string `yaml:"executable_path"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	HealthPath     string `yaml:"health_path"`
	StartupTimeoutSec int `yaml:"startup_timeout_sec"`
	GracePeriodSec    int `yaml:"grace_period_sec"`
}

// DefaultConfig returns a SystemConfig with every default value from the spec
// filled in; Load merges the parsed file on top of this.
func DefaultConfig() *SystemConfig {
	return &SystemConfig{
		System: SystemSection{
			Host:                   "0.0.0.0",
			Port:                   8420,
			LogLevel:               "info",
			HealthCheckIntervalSec: 30,
			AutoRecovery:           true,
			CORSPermissive:         true,
			JobRetention:           1000,
			EmbeddingDim:           64,
		},
	}
}

// knownTopLevelKeys is used to warn (not fail) on unrecognized top-level keys,
// per §6A ("unknown keys are warned about but ignored").
var knownTopLevelKeys = map[string]bool{
	"system": true, "agents": true, "functions": true, "inference_engines": true,
}

// Load reads and parses a YAML configuration file, applying defaults for any
// missing fields. It never fails on unknown keys; callers that want those
// warnings should use UnknownKeys.
func Load(path string) (*SystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return cfg, nil
}

// UnknownKeys returns the set of top-level keys present in the file but not
// recognized by SystemConfig, for a caller that wants to log warnings.
func UnknownKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var unknown []string
	for k := range raw {
		if !knownTopLevelKeys[k] {
			unknown = append(unknown, k)
		}
	}
	return unknown, nil
}

// Save writes the config back out as YAML.
func (c *SystemConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("config: create dir %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	return os.WriteFile(path, data, 0o640)
}

// Validate checks structural requirements that are independent of any other
// component: a system port within 0..65535, unique non-empty agent IDs, a
// non-empty name for each agent, and unique non-empty function names. Agent
// roles are not checked.
func Validate(cfg *SystemConfig) error {
	if cfg.System.Port < 0 || cfg.System.Port > 65535 {
		return fmt.Errorf("system.port out of range: %d", cfg.System.Port)
	}

	seen := make(map[string]bool, len(cfg.Agents))
	for i, a := range cfg.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, a.ID)
		}
		seen[a.ID] = true

		if a.Name == "" {
			return fmt.Errorf("agents[%d] (%s): name is required", i, a.ID)
		}
	}

	names := make(map[string]bool, len(cfg.Functions))
	for i, f := range cfg.Functions {
		if f.Name == "" {
			return fmt.Errorf("functions[%d]: name is required", i)
		}
		if names[f.Name] {
			return fmt.Errorf("functions[%d]: duplicate function name %q", i, f.Name)
		}
		names[f.Name] = true
	}

	return nil
}
