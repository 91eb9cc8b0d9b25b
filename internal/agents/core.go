// Package agents implements AgentCore (C6) and AgentManager (C7): the
// per-agent runtime and the process-wide registry that owns them.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/bus"
	"github.com/kolosalai/agentruntime/internal/functions"
	"github.com/kolosalai/agentruntime/internal/jobs"
	"github.com/kolosalai/agentruntime/internal/memory"
)

// Role is one of the enumerated AgentConfig roles (§3).
type Role string

const (
	RoleCoordinator Role = "COORDINATOR"
	RoleAnalyst     Role = "ANALYST"
	RoleExecutor    Role = "EXECUTOR"
	RoleSpecialist  Role = "SPECIALIST"
	RoleGeneric     Role = "GENERIC"
)

// Stats is the AgentCore.stats record from §3.
type Stats struct {
	mu                sync.Mutex
	FunctionsExecuted int64
	ToolsExecuted     int64
	PlansCreated      int64
	MemoryEntries     int64
	AvgExecMs         float64
	LastActivity      time.Time
}

// Snapshot returns a value copy of Stats, safe to read without racing
// concurrent updates.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		FunctionsExecuted: s.FunctionsExecuted,
		ToolsExecuted:     s.ToolsExecuted,
		PlansCreated:      s.PlansCreated,
		MemoryEntries:     s.MemoryEntries,
		AvgExecMs:         s.AvgExecMs,
		LastActivity:      s.LastActivity,
	}
}

func (s *Stats) recordExecution(execMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.FunctionsExecuted
	s.FunctionsExecuted++
	// running average: new = old + (sample - old) / count
	s.AvgExecMs += (float64(execMs) - s.AvgExecMs) / float64(n+1)
	s.LastActivity = time.Now()
}

// Core is the AgentCore from §4.5: one FunctionRegistry, one JobManager, one
// MemoryManager, capabilities, role, and an inbox handler registered with
// the shared MessageRouter while running.
type Core struct {
	mu sync.RWMutex

	id           string
	name         string
	agentType    string
	role         Role
	capabilities map[string]struct{}
	running      bool

	Functions *functions.Registry
	Jobs      *jobs.Manager
	Memory    *memory.Manager
	stats     Stats

	router *bus.Router
	logger *slog.Logger
}

// Config is the construction-time configuration for a Core.
type Config struct {
	ID           string
	Name         string
	Type         string
	Role         Role
	Capabilities []string
	Functions    *functions.Registry
	Memory       *memory.Manager
	Router       *bus.Router
	JobWorkers   int
	JobStore     jobs.Store // optional retention sink (C14)
	Logger       *slog.Logger
}

// New builds a Core in the REGISTERED (not running) state.
func New(cfg Config) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent_core", "agent_id", cfg.ID, "agent_name", cfg.Name)

	caps := make(map[string]struct{}, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[c] = struct{}{}
	}

	c := &Core{
		id:           cfg.ID,
		name:         cfg.Name,
		agentType:    cfg.Type,
		role:         cfg.Role,
		capabilities: caps,
		Functions:    cfg.Functions,
		Memory:       cfg.Memory,
		router:       cfg.Router,
		logger:       logger,
	}

	c.Jobs = jobs.NewManager(jobs.Config{
		AgentID:       cfg.ID,
		Workers:       cfg.JobWorkers,
		Registry:      cfg.Functions,
		Store:         cfg.JobStore,
		OnJobComplete: func(job jobs.Job) { c.stats.recordExecution(job.FinishedAt.Sub(job.StartedAt).Milliseconds()) },
		Logger:        logger,
	})

	return c
}

// ID returns the agent's immutable identity.
func (c *Core) ID() string { return c.id }

// Name returns the agent's current display name.
func (c *Core) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Type returns the agent's declared type string.
func (c *Core) Type() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agentType
}

// Role returns the agent's current role.
func (c *Core) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Rename changes name/role. Only permitted while the agent is stopped (§4.5).
func (c *Core) Rename(name string, role Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("agent %s: cannot rename while running", c.id)
	}
	if name != "" {
		c.name = name
	}
	if role != "" {
		c.role = role
	}
	return nil
}

// Capabilities returns the agent's declared capability set.
func (c *Core) Capabilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.capabilities))
	for cap := range c.capabilities {
		out = append(out, cap)
	}
	return out
}

// Statistics returns a snapshot of the agent's execution statistics.
func (c *Core) Statistics() Stats {
	return c.stats.Snapshot()
}

// IsRunning reports whether the agent is currently RUNNING.
func (c *Core) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Start transitions the agent to RUNNING: starts its JobManager and
// registers its inbox handler with the router. Idempotent — a second call
// logs a warn and is otherwise a no-op (§4.5).
func (c *Core) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Warn("start called on already-running agent")
		return
	}
	c.running = true
	c.mu.Unlock()

	c.Jobs.Start()
	if c.router != nil {
		c.router.Register(c.id, c.handleInbox)
	}
	c.logger.Info("agent started")
}

// Stop transitions the agent back to REGISTERED: deregisters from the
// router and drains the JobManager (§4.5).
func (c *Core) Stop(jobDrainTimeout time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	if c.router != nil {
		c.router.Unregister(c.id)
	}
	c.Jobs.Stop(jobDrainTimeout)
	c.Memory.Stop()
	c.logger.Info("agent stopped")
}

// handleInbox is the Handler registered with the router. It runs on the
// router's dispatcher goroutine (§4.5) and must not block on expensive work —
// it only records the message was seen. Real handling, if any, happens by an
// agent enqueuing its own job from within this callback, never inline here.
func (c *Core) handleInbox(msg bus.Message) {
	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if !running {
		c.logger.Warn("dropping inbox message: agent not running", "message_id", msg.ID)
		return
	}
	c.logger.Debug("inbox message received", "from", msg.From, "type", msg.Type, "message_id", msg.ID)
}

// ExecuteFunction synchronously dispatches name through the FunctionRegistry,
// updating stats from the result (§4.5).
func (c *Core) ExecuteFunction(ctx context.Context, name string, params agentdata.Data) functions.Result {
	start := time.Now()
	result := c.Functions.Dispatch(ctx, name, params)
	c.stats.recordExecution(time.Since(start).Milliseconds())
	return result
}

// ExecuteFunctionAsync forwards to JobManager.Submit, returning the job id.
func (c *Core) ExecuteFunctionAsync(ctx context.Context, name string, params agentdata.Data, priority int) (string, error) {
	return c.Jobs.Submit(ctx, name, params, priority, c.id)
}

// SendMessage constructs a message from this agent and routes it directly.
func (c *Core) SendMessage(to, msgType string, payload agentdata.Data) {
	if c.router == nil {
		return
	}
	c.router.Route(bus.NewMessage(c.id, to, msgType, payload))
}

// BroadcastMessage constructs a message from this agent and broadcasts it.
func (c *Core) BroadcastMessage(msgType string, payload agentdata.Data) {
	if c.router == nil {
		return
	}
	c.router.Broadcast(bus.NewMessage(c.id, bus.Broadcast, msgType, payload))
}

// StoreMemory stores content in the agent's vector memory, embedding it.
func (c *Core) StoreMemory(ctx context.Context, content string, entryType memory.EntryType, metadata map[string]string) (string, error) {
	id, err := c.Memory.Vector.Store(ctx, content, entryType, metadata)
	if err == nil {
		c.stats.mu.Lock()
		c.stats.MemoryEntries++
		c.stats.mu.Unlock()
	}
	return id, err
}

// RecallMemories is a convenience wrapper over the memory manager's recall.
func (c *Core) RecallMemories(ctx context.Context, q memory.Query, semanticText string, k int) ([]memory.Entry, error) {
	return c.Memory.Recall(ctx, q, semanticText, k)
}

// SetWorkingContext records a keyed value in working memory.
func (c *Core) SetWorkingContext(key string, value agentdata.Value) {
	c.Memory.Working.SetContext(key, value)
}

// GetWorkingContext reads a keyed value from working memory.
func (c *Core) GetWorkingContext(key string) (agentdata.Value, bool) {
	return c.Memory.Working.GetContext(key)
}
