// Package supervisor implements the Supervisor (C8): a periodic health-check
// loop over the MessageRouter/JobManager/MemoryManager/AgentManager substrate
// and the external inference backend, with bounded auto-recovery (§4.7).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kolosalai/agentruntime/internal/agents"
	"github.com/kolosalai/agentruntime/internal/config"
)

// AgentManager is the narrow slice of *agents.Manager the supervisor depends
// on, so tests can inject a fake instead of standing up a real router and a
// population of agents.
type AgentManager interface {
	SystemStatus() agents.SystemStatusReport
	ReloadConfiguration(ctx context.Context, cfg *config.SystemConfig) (agents.StartupReport, error)
	StopAgent(id string) error
	StartAgent(id string) error
}

// StatusPublisher receives one SystemStatus per supervisor cycle. The
// StatusStream (C13) WebSocket broadcaster implements this; so does any
// optional subscriber callback.
type StatusPublisher interface {
	Publish(SystemStatus)
}

// publisherFunc adapts a plain func(SystemStatus) to StatusPublisher.
type publisherFunc func(SystemStatus)

func (f publisherFunc) Publish(s SystemStatus) { f(s) }

// SystemStatus is the snapshot computed once per supervisor cycle (§6).
type SystemStatus struct {
	Timestamp time.Time                  `json:"timestamp"`
	Agents    agents.SystemStatusReport  `json:"agents"`
	Backends  []BackendStatus            `json:"backends"`
	Healthy   bool                       `json:"healthy"`
}

// Config configures a Supervisor.
type Config struct {
	AgentManager        AgentManager
	Engines             []config.InferenceEngine
	Interval            time.Duration // default 30s
	AutoRecovery        bool
	MaxRecoveryAttempts int           // default 3
	RecoveryWindow      time.Duration // default 5m
	ActionTimeout       time.Duration // default 10s
	Logger              *slog.Logger
}

// Supervisor is the C8 health-and-recovery loop.
type Supervisor struct {
	agentManager AgentManager
	engines      []config.InferenceEngine
	interval     time.Duration
	autoRecover  bool
	maxAttempts  int
	window       time.Duration
	actionTO     time.Duration
	logger       *slog.Logger
	httpClient   *http.Client

	mu              sync.RWMutex
	lastConfig      *config.SystemConfig
	subscribers     []StatusPublisher
	streamPublisher StatusPublisher
	lastStatus      *SystemStatus

	recoveryMu sync.Mutex
	recovery   map[string]*recoveryState // component key -> state

	procMu sync.Mutex
	procs  map[string]*exec.Cmd // engine name -> running subprocess, if we started it

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New builds a Supervisor. Call SetConfig before Start so the agent-manager
// liveness check and AgentManager recovery action know the expected
// auto-start population.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxAttempts := cfg.MaxRecoveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	window := cfg.RecoveryWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	actionTO := cfg.ActionTimeout
	if actionTO <= 0 {
		actionTO = 10 * time.Second
	}

	return &Supervisor{
		agentManager: cfg.AgentManager,
		engines:      cfg.Engines,
		interval:     interval,
		autoRecover:  cfg.AutoRecovery,
		maxAttempts:  maxAttempts,
		window:       window,
		actionTO:     actionTO,
		logger:       logger.With("component", "supervisor"),
		httpClient:   &http.Client{Timeout: 3 * time.Second},
		recovery:     make(map[string]*recoveryState),
		procs:        make(map[string]*exec.Cmd),
	}
}

// SetConfig records the configuration the agent manager was last loaded
// with, used both to know the expected RUNNING count and to reload
// configuration as a recovery action.
func (s *Supervisor) SetConfig(cfg *config.SystemConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastConfig = cfg
}

// Subscribe registers a callback invoked with every computed SystemStatus.
func (s *Supervisor) Subscribe(fn func(SystemStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, publisherFunc(fn))
}

// SetStatusStream attaches the StatusStream (C13) broadcaster as an
// additional publisher. Passing nil detaches it.
func (s *Supervisor) SetStatusStream(p StatusPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamPublisher = p
}

// Start begins the periodic health-check loop on its own goroutine.
// Idempotent — a second call is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		s.logger.Warn("start called on already-running supervisor")
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	s.logger.Info("supervisor started", "interval", s.interval)
}

// Stop halts the loop and waits up to timeout for the current cycle to
// finish.
func (s *Supervisor) Stop(timeout time.Duration) {
	s.mu.Lock()
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()
	if stopCh == nil {
		return
	}

	s.once.Do(func() { close(stopCh) })
	select {
	case <-doneCh:
	case <-time.After(timeout):
		s.logger.Warn("supervisor stop timed out, abandoning in-flight cycle")
	}
}

func (s *Supervisor) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle performs one health-check pass: poll backends and AgentManager
// liveness concurrently, compute and publish SystemStatus, then attempt
// bounded recovery for anything unhealthy (§4.7).
func (s *Supervisor) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.actionTO)
	defer cancel()

	var (
		backends    []BackendStatus
		agentHealth bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		backends = s.checkBackends(gctx)
		return nil
	})
	g.Go(func() error {
		agentHealth = s.checkAgentManagerLiveness()
		return nil
	})
	_ = g.Wait()

	healthy := agentHealth
	for _, b := range backends {
		if !b.Healthy {
			healthy = false
		}
	}

	status := SystemStatus{
		Timestamp: time.Now(),
		Backends:  backends,
		Healthy:   healthy,
	}
	if s.agentManager != nil {
		status.Agents = s.agentManager.SystemStatus()
	}
	s.publish(status)

	if !s.autoRecover {
		return
	}
	if !agentHealth {
		s.tryRecoverAgentManager(ctx)
	}
	for _, b := range backends {
		if !b.Healthy {
			s.tryRecoverBackend(ctx, b.Name)
		}
	}
}

func (s *Supervisor) publish(status SystemStatus) {
	s.mu.Lock()
	s.lastStatus = &status
	subs := append([]StatusPublisher(nil), s.subscribers...)
	stream := s.streamPublisher
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Publish(status)
	}
	if stream != nil {
		stream.Publish(status)
	}
}

// Latest returns the most recently published SystemStatus. The second return
// is false until the first cycle has run.
func (s *Supervisor) Latest() (SystemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastStatus == nil {
		return SystemStatus{}, false
	}
	return *s.lastStatus, true
}

// checkBackends polls every configured inference engine's health endpoint.
func (s *Supervisor) checkBackends(ctx context.Context) []BackendStatus {
	if len(s.engines) == 0 {
		return nil
	}
	out := make([]BackendStatus, len(s.engines))
	var wg sync.WaitGroup
	for i, eng := range s.engines {
		i, eng := i, eng
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = s.checkBackend(ctx, eng)
		}()
	}
	wg.Wait()
	return out
}

func (s *Supervisor) checkBackend(ctx context.Context, eng config.InferenceEngine) BackendStatus {
	status := BackendStatus{Name: eng.Name, LastChecked: time.Now()}

	path := eng.HealthPath
	if path == "" {
		path = "/health"
	}
	url := fmt.Sprintf("http://%s:%d%s", eng.Host, eng.Port, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		status.Healthy = true
	} else {
		status.LastError = fmt.Sprintf("unhealthy status %d", resp.StatusCode)
	}
	return status
}

// checkAgentManagerLiveness compares the RUNNING agent count against the
// expected auto_start count from the last loaded configuration (§4.7 item 2).
func (s *Supervisor) checkAgentManagerLiveness() bool {
	if s.agentManager == nil {
		return true
	}
	report := s.agentManager.SystemStatus()

	s.mu.RLock()
	cfg := s.lastConfig
	s.mu.RUnlock()
	if cfg == nil {
		return true
	}

	expected := 0
	for _, ac := range cfg.Agents {
		if ac.AutoStart {
			expected++
		}
	}
	return report.RunningAgents >= expected
}

func (s *Supervisor) stateFor(key string) *recoveryState {
	s.recoveryMu.Lock()
	defer s.recoveryMu.Unlock()
	st, ok := s.recovery[key]
	if !ok {
		st = &recoveryState{}
		s.recovery[key] = st
	}
	return st
}

// tryRecoverAgentManager reloads the AgentManager's configuration, per
// §4.7's recovery-action table.
func (s *Supervisor) tryRecoverAgentManager(ctx context.Context) {
	key := "agent_manager"
	st := s.stateFor(key)
	if !st.allow(s.window, s.maxAttempts) {
		s.logger.Warn("agent manager unhealthy but recovery attempts exhausted", "key", key)
		return
	}

	s.mu.RLock()
	cfg := s.lastConfig
	s.mu.RUnlock()
	if cfg == nil || s.agentManager == nil {
		st.recordAttempt(false)
		return
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.actionTO)
	defer cancel()
	_, err := s.agentManager.ReloadConfiguration(actionCtx, cfg)
	if err != nil {
		s.logger.Error("agent manager recovery failed", "error", err)
		st.recordAttempt(false)
		return
	}
	s.logger.Info("agent manager recovered via reload")
	st.recordAttempt(true)
}

// RecoverAgent stops and starts a single agent, the per-agent recovery
// action from §4.7's table. Exposed so the ManagementAPI or a manual
// operator action can reuse the same bounded-recovery bookkeeping.
func (s *Supervisor) RecoverAgent(ctx context.Context, agentID string) error {
	key := "agent:" + agentID
	st := s.stateFor(key)
	if !st.allow(s.window, s.maxAttempts) {
		return fmt.Errorf("supervisor: recovery attempts exhausted for agent %s", agentID)
	}
	if s.agentManager == nil {
		return fmt.Errorf("supervisor: no agent manager configured")
	}
	if err := s.agentManager.StopAgent(agentID); err != nil {
		st.recordAttempt(false)
		return err
	}
	if err := s.agentManager.StartAgent(agentID); err != nil {
		st.recordAttempt(false)
		return err
	}
	st.recordAttempt(true)
	return nil
}

// tryRecoverBackend restarts the named inference engine's subprocess, per
// §4.7's recovery-action table.
func (s *Supervisor) tryRecoverBackend(ctx context.Context, name string) {
	key := "backend:" + name
	st := s.stateFor(key)
	if !st.allow(s.window, s.maxAttempts) {
		s.logger.Warn("backend unhealthy but recovery attempts exhausted", "engine", name)
		return
	}

	var eng *config.InferenceEngine
	for i := range s.engines {
		if s.engines[i].Name == name {
			eng = &s.engines[i]
			break
		}
	}
	if eng == nil || eng.ExecutablePath == "" {
		st.recordAttempt(false)
		return
	}

	if err := s.restartBackendProcess(ctx, *eng); err != nil {
		s.logger.Error("backend recovery failed", "engine", name, "error", err)
		st.recordAttempt(false)
		return
	}
	s.logger.Info("backend subprocess restarted", "engine", name)
	st.recordAttempt(true)
}

// restartBackendProcess kills any subprocess this supervisor previously
// started for eng (SIGTERM, then SIGKILL after the engine's grace period)
// and starts a fresh one with --host and --port set from eng.
func (s *Supervisor) restartBackendProcess(ctx context.Context, eng config.InferenceEngine) error {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if old, ok := s.procs[eng.Name]; ok && old.Process != nil {
		grace := time.Duration(eng.GracePeriodSec) * time.Second
		if grace <= 0 {
			grace = 5 * time.Second
		}
		_ = old.Process.Signal(syscall.SIGTERM)
		done := make(chan struct{})
		go func() { old.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(grace):
			_ = old.Process.Kill()
		}
		delete(s.procs, eng.Name)
	}

	cmd := exec.CommandContext(context.Background(), eng.ExecutablePath, "--host", eng.Host, "--port", fmt.Sprint(eng.Port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", eng.Name, err)
	}
	s.procs[eng.Name] = cmd
	return nil
}
