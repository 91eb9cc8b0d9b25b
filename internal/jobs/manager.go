package jobs

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/functions"
)

// Store is the retention sink a JobManager mirrors terminal jobs into (C14).
// A nil Store disables retention entirely.
type Store interface {
	Record(agentID string, job Job) error
}

// Manager is the JobManager from §4.4: a priority queue plus a fixed worker
// pool serving one agent's function invocations.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond
	pq   priorityQueue
	jobs map[string]*Job // all_jobs: every job this manager has ever seen

	registry *functions.Registry
	workers  int
	stopping bool
	wg       sync.WaitGroup

	agentID      string
	store        Store
	onJobComplete func(Job)

	logger *slog.Logger
}

// Config controls a Manager's worker pool size and optional collaborators.
type Config struct {
	AgentID       string
	Workers       int // max_concurrent_tasks; defaults to 1 if <= 0
	Registry      *functions.Registry
	Store         Store           // optional retention sink (C14)
	OnJobComplete func(job Job)   // optional stats callback, invoked after each terminal transition
	Logger        *slog.Logger
}

// NewManager creates a JobManager bound to one agent's function registry.
func NewManager(cfg Config) *Manager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		jobs:          make(map[string]*Job),
		registry:      cfg.Registry,
		workers:       workers,
		agentID:       cfg.AgentID,
		store:         cfg.Store,
		onJobComplete: cfg.OnJobComplete,
		logger:        logger.With("component", "job_manager", "agent_id", cfg.AgentID),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Start spawns the worker pool. After a Stop it also accepts new jobs again.
func (m *Manager) Start() {
	m.mu.Lock()
	m.stopping = false
	m.mu.Unlock()
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop()
	}
}

// Stop signals shutdown to the queue — workers exit on their next dequeue
// without dequeuing further jobs — joins all workers within timeout, then
// marks remaining PENDING jobs CANCELLED (§4.4).
func (m *Manager) Stop(timeout time.Duration) {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()
	m.cond.Broadcast()

	joined := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(timeout):
		m.logger.Warn("job manager stop timed out waiting for workers")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.pq) > 0 {
		job := heap.Pop(&m.pq).(*Job)
		job.Status = StatusCancelled
		job.FinishedAt = time.Now()
	}
}

// Submit enqueues a new job and returns its id.
func (m *Manager) Submit(ctx context.Context, functionName string, params agentdata.Data, priority int, requester string) (string, error) {
	job := &Job{
		ID:           uuid.NewString(),
		FunctionName: functionName,
		Params:       params,
		Priority:     priority,
		Requester:    requester,
		Status:       StatusPending,
		EnqueuedAt:   time.Now(),
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return "", fmt.Errorf("job manager: stopped, rejecting new job")
	}
	m.jobs[job.ID] = job
	heap.Push(&m.pq, job)
	m.mu.Unlock()
	m.cond.Signal()

	return job.ID, nil
}

// Cancel transitions a PENDING job directly to CANCELLED, removing it from
// the queue; for a RUNNING job it requests cooperative cancellation via the
// job's context. Returns whether a transition/cancellation was applied.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return false
	}

	switch job.Status {
	case StatusPending:
		if m.pq.removeJob(jobID) {
			job.Status = StatusCancelled
			job.FinishedAt = time.Now()
			return true
		}
		return false
	case StatusRunning:
		if job.cancel != nil {
			job.cancel()
			return true
		}
		return false
	default:
		return false
	}
}

// Status returns the current status of jobID.
func (m *Manager) Status(jobID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return "", false
	}
	return job.Status, true
}

// Result returns the FunctionResult for jobID. Only meaningful once the job
// has reached a terminal status.
func (m *Manager) Result(jobID string) (functions.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return functions.Result{}, false
	}
	return job.Result, true
}

// Snapshot returns a copy of jobID's full record.
func (m *Manager) Snapshot(jobID string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return job.Snapshot(), true
}

// Stats is the point-in-time depth/backlog snapshot from §4.4.
type Stats struct {
	QueueDepth int
	TotalJobs  int
}

// Stats reports queue depth and total tracked job count for admission
// control by the caller (AgentCore or ManagementAPI).
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{QueueDepth: len(m.pq), TotalJobs: len(m.jobs)}
}

// StatusCounts tallies all_jobs by lifecycle state, for the ManagementAPI's
// aggregate SystemStatus.jobs field.
type StatusCounts struct {
	Pending, Running, Completed, Failed, Cancelled int
}

func (m *Manager) StatusCounts() StatusCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c StatusCounts
	for _, j := range m.jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusRunning:
			c.Running++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for len(m.pq) == 0 && !m.stopping {
			m.cond.Wait()
		}
		if m.stopping {
			m.mu.Unlock()
			return
		}
		job := heap.Pop(&m.pq).(*Job)

		ctx, cancel := context.WithCancel(context.Background())
		job.Status = StatusRunning
		job.StartedAt = time.Now()
		job.cancel = cancel
		m.mu.Unlock()

		result := m.execute(ctx, job)

		m.mu.Lock()
		job.cancel = nil
		job.Result = result
		job.FinishedAt = time.Now()
		if result.Success {
			job.Status = StatusCompleted
		} else {
			job.Status = StatusFailed
		}
		snapshot := job.Snapshot()
		m.mu.Unlock()
		cancel()

		if m.onJobComplete != nil {
			m.onJobComplete(snapshot)
		}
		if m.store != nil {
			if err := m.store.Record(m.agentID, snapshot); err != nil {
				m.logger.Warn("failed to record job to retention store", "job_id", job.ID, "error", err)
			}
		}
	}
}

// execute invokes the function, recovering a panic at the worker boundary
// and translating it into a failed Result (§4.4).
func (m *Manager) execute(ctx context.Context, job *Job) (result functions.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = functions.Fail(fmt.Sprintf("panic in function execution: %v", r), job.StartedAt)
		}
	}()
	return m.registry.Dispatch(ctx, job.FunctionName, job.Params)
}
