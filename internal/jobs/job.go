// Package jobs implements the per-agent JobManager (§4.4): a priority queue
// paired with a fixed-size worker pool serving one AgentCore's function
// invocations.
package jobs

import (
	"context"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/functions"
)

// Status is a Job's lifecycle state (§3).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Job is the Job record from §3. cancel is non-nil only while the job is
// RUNNING, giving Cancel a way to request cooperative cancellation.
type Job struct {
	ID           string
	FunctionName string
	Params       agentdata.Data
	Priority     int
	Requester    string
	Status       Status
	Result       functions.Result
	EnqueuedAt   time.Time
	StartedAt    time.Time
	FinishedAt   time.Time

	cancel context.CancelFunc
}

// Snapshot returns a value copy of the job's externally visible fields,
// safe to hand to a caller without aliasing the manager's internal state.
func (j *Job) Snapshot() Job {
	cp := *j
	cp.cancel = nil
	cp.Params = j.Params.Clone()
	return cp
}
