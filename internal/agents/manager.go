package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kolosalai/agentruntime/internal/bus"
	"github.com/kolosalai/agentruntime/internal/config"
	"github.com/kolosalai/agentruntime/internal/embedding"
	"github.com/kolosalai/agentruntime/internal/functions"
	"github.com/kolosalai/agentruntime/internal/jobs"
	"github.com/kolosalai/agentruntime/internal/memory"
	"github.com/kolosalai/agentruntime/internal/memory/hybrid"
)

// Manager is the AgentManager from §4.6: a process-wide registry of Core
// instances keyed by AgentID, backed by a single lock held only for the
// duration of each map operation.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Core
	byName map[string]string // name -> id, for GetAgentByName

	router            *bus.Router
	embeddingProvider embedding.Provider
	llmCall           func(ctx context.Context, prompt string) (string, error)
	jobDrainTimeout   time.Duration
	jobStore          *jobs.SQLiteStore
	hybridStore       hybrid.MemoryBackend
	logger            *slog.Logger
}

// ManagerConfig controls the collaborators every created Core is wired to.
type ManagerConfig struct {
	Router            *bus.Router
	EmbeddingProvider embedding.Provider
	LLMCall           func(ctx context.Context, prompt string) (string, error)
	JobDrainTimeout   time.Duration
	// JobStore, if set, is handed to every Core's JobManager as its retention
	// sink and queried back by JobHistory (C14).
	JobStore *jobs.SQLiteStore
	// HybridStore, if set, is handed to every Core's function registry so its
	// retrieval builtin can search the shared FTS5+vector memory store.
	HybridStore hybrid.MemoryBackend
	Logger      *slog.Logger
}

// NewManager creates an empty AgentManager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	drain := cfg.JobDrainTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	return &Manager{
		agents:            make(map[string]*Core),
		byName:            make(map[string]string),
		router:            cfg.Router,
		embeddingProvider: cfg.EmbeddingProvider,
		llmCall:           cfg.LLMCall,
		jobDrainTimeout:   drain,
		jobStore:          cfg.JobStore,
		hybridStore:       cfg.HybridStore,
		logger:            logger.With("component", "agent_manager"),
	}
}

// StartupReport summarizes a LoadConfiguration / ReloadConfiguration batch.
type StartupReport struct {
	Created []string
	Started []string
	Failed  map[string]error
}

// LoadConfiguration creates (and, per auto_start, starts) one Core per
// AgentConfig. Agent creation runs concurrently across the batch, bounded by
// errgroup; a failure on one agent is isolated and reported, never aborting
// the rest (§4.6).
func (m *Manager) LoadConfiguration(ctx context.Context, cfg *config.SystemConfig) (StartupReport, error) {
	if err := config.Validate(cfg); err != nil {
		return StartupReport{}, fmt.Errorf("agent manager: invalid configuration: %w", err)
	}

	report := StartupReport{Failed: make(map[string]error)}
	var reportMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	_ = gctx
	for _, ac := range cfg.Agents {
		ac := ac
		g.Go(func() error {
			id, err := m.CreateAgentFromConfig(ac)
			reportMu.Lock()
			defer reportMu.Unlock()
			if err != nil {
				report.Failed[ac.ID] = err
				m.logger.Error("failed to create agent", "agent_id", ac.ID, "error", err)
				return nil // isolate: don't abort the batch
			}
			report.Created = append(report.Created, id)
			if ac.AutoStart {
				if err := m.StartAgent(id); err != nil {
					report.Failed[ac.ID] = err
					m.logger.Error("failed to auto-start agent", "agent_id", ac.ID, "error", err)
					return nil
				}
				report.Started = append(report.Started, id)
			}
			return nil
		})
	}
	_ = g.Wait() // individual errors are captured in report, never propagated

	return report, nil
}

// CreateAgentFromConfig builds and registers a Core from an AgentConfig,
// wiring its declared functions via the builtin factory, without starting it.
func (m *Manager) CreateAgentFromConfig(ac config.AgentConfig) (string, error) {
	registry := functions.NewRegistry(m.logger)
	functions.RegisterBuiltins(registry, functions.Deps{
		Logger:            m.logger,
		EmbeddingProvider: m.embeddingProvider,
		LLMCall:           m.llmCall,
		HybridStore:       m.hybridStore,
	})

	memCfg := memory.Config{MaxMessages: 100}
	mem := memory.NewManager(m.embeddingProvider, memCfg, m.logger)
	if err := mem.StartScheduledCleanup(); err != nil {
		return "", fmt.Errorf("agent manager: starting memory cleanup for %s: %w", ac.ID, err)
	}

	// A nil *jobs.SQLiteStore must not be boxed into the jobs.Store interface
	// directly, or the manager's "store != nil" check sees a non-nil interface
	// wrapping a nil pointer and panics on first Record call.
	var store jobs.Store
	if m.jobStore != nil {
		store = m.jobStore
	}

	core := New(Config{
		ID:           ac.ID,
		Name:         ac.Name,
		Type:         ac.Type,
		Role:         Role(ac.Role),
		Capabilities: ac.Capabilities,
		Functions:    registry,
		Memory:       mem,
		Router:       m.router,
		JobWorkers:   ac.MaxConcurrentTasks,
		JobStore:     store,
		Logger:       m.logger,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agents[ac.ID]; exists {
		return "", fmt.Errorf("agent manager: agent id %q already registered", ac.ID)
	}
	m.agents[ac.ID] = core
	m.byName[ac.Name] = ac.ID
	return ac.ID, nil
}

// StartAgent starts the agent with the given id.
func (m *Manager) StartAgent(id string) error {
	core, ok := m.GetAgent(id)
	if !ok {
		return fmt.Errorf("agent manager: unknown agent %q", id)
	}
	core.Start()
	return nil
}

// StopAgent stops the agent with the given id.
func (m *Manager) StopAgent(id string) error {
	core, ok := m.GetAgent(id)
	if !ok {
		return fmt.Errorf("agent manager: unknown agent %q", id)
	}
	core.Stop(m.jobDrainTimeout)
	return nil
}

// DeleteAgent stops (if running) and removes the agent from the registry.
func (m *Manager) DeleteAgent(id string) error {
	core, ok := m.GetAgent(id)
	if !ok {
		return fmt.Errorf("agent manager: unknown agent %q", id)
	}
	if core.IsRunning() {
		core.Stop(m.jobDrainTimeout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, id)
	delete(m.byName, core.Name())
	return nil
}

// ListAgents returns every registered Core.
func (m *Manager) ListAgents() []*Core {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Core, 0, len(m.agents))
	for _, c := range m.agents {
		out = append(out, c)
	}
	return out
}

// GetAgent returns the Core registered under id.
func (m *Manager) GetAgent(id string) (*Core, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.agents[id]
	return c, ok
}

// GetAgentByName returns the Core registered under the given display name.
func (m *Manager) GetAgentByName(name string) (*Core, bool) {
	m.mu.RLock()
	id, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.GetAgent(id)
}

// ReloadConfiguration is a stop-all-then-recreate cycle, never a live-patch
// (§4.6, §9): every current agent is stopped and removed, then
// LoadConfiguration runs against the new config.
func (m *Manager) ReloadConfiguration(ctx context.Context, cfg *config.SystemConfig) (StartupReport, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.DeleteAgent(id); err != nil {
			m.logger.Warn("reload: failed to delete agent cleanly", "agent_id", id, "error", err)
		}
	}

	return m.LoadConfiguration(ctx, cfg)
}

// SystemStatusReport is the data returned by SystemStatus.
type SystemStatusReport struct {
	TotalAgents   int
	RunningAgents int
	Agents        []AgentStatus
}

// AgentStatus is a single agent's entry in a SystemStatusReport.
type AgentStatus struct {
	ID      string
	Name    string
	Role    Role
	Running bool
	Stats   Stats
}

// JobStatusCounts aggregates job.StatusCounts across every registered agent's
// JobManager, for the ManagementAPI's SystemStatus.jobs field.
func (m *Manager) JobStatusCounts() jobs.StatusCounts {
	var total jobs.StatusCounts
	for _, c := range m.ListAgents() {
		sc := c.Jobs.StatusCounts()
		total.Pending += sc.Pending
		total.Running += sc.Running
		total.Completed += sc.Completed
		total.Failed += sc.Failed
		total.Cancelled += sc.Cancelled
	}
	return total
}

// JobHistory returns the retained terminal jobs for agentID, newest first.
// Returns an empty slice without error if no retention store is configured.
func (m *Manager) JobHistory(agentID string, limit int) ([]jobs.JobRecord, error) {
	if m.jobStore == nil {
		return nil, nil
	}
	return m.jobStore.History(agentID, limit)
}

// FindJob searches every registered agent's JobManager for jobID, returning
// the owning agent's id alongside the job snapshot. Job ids are globally
// unique (UUIDs), so at most one agent can hold a match.
func (m *Manager) FindJob(jobID string) (ownerID string, job jobs.Job, ok bool) {
	for _, c := range m.ListAgents() {
		if snap, found := c.Jobs.Snapshot(jobID); found {
			return c.ID(), snap, true
		}
	}
	return "", jobs.Job{}, false
}

// SystemStatus reports a snapshot of every registered agent's run state and
// statistics.
func (m *Manager) SystemStatus() SystemStatusReport {
	agents := m.ListAgents()
	report := SystemStatusReport{TotalAgents: len(agents)}
	for _, c := range agents {
		running := c.IsRunning()
		if running {
			report.RunningAgents++
		}
		report.Agents = append(report.Agents, AgentStatus{
			ID:      c.ID(),
			Name:    c.Name(),
			Role:    c.Role(),
			Running: running,
			Stats:   c.Statistics(),
		})
	}
	return report
}
