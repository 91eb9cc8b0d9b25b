package functions

import (
	"context"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

// Function is the invocable abstraction a registry dispatches to (§4.1).
// Implementations must not hold singleton state — dependencies (loggers,
// HTTP clients, embedding providers) are injected at construction.
type Function interface {
	Name() string
	Description() string
	Category() string
	Schema() Schema
	Execute(ctx context.Context, params agentdata.Data) Result
}

// CostEstimator is an optional extension a Function may implement to report
// an expected execution cost (used by callers doing admission control, not
// by the registry itself).
type CostEstimator interface {
	EstimateCost(params agentdata.Data) float64
}

// Result is the FunctionResult record from §3.
type Result struct {
	Success         bool
	ErrorMessage    string
	ResultData      agentdata.Value
	ExecutionTimeMs int64
}

// OK builds a successful Result, stamping ExecutionTimeMs from the given start.
func OK(data agentdata.Value, start time.Time) Result {
	return Result{
		Success:         true,
		ResultData:      data,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}

// Fail builds a failed Result carrying the given error message.
func Fail(msg string, start time.Time) Result {
	return Result{
		Success:         false,
		ErrorMessage:    msg,
		ResultData:      agentdata.None(),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}
