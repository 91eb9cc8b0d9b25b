// Package errs defines the runtime's error taxonomy (§7): six distinct
// types implementing error, each carrying enough context for the
// ManagementAPI to map it to an HTTP status via a single dispatch table.
package errs

import "fmt"

// ValidationError is malformed input to a public operation: a bad
// AgentConfig, a missing required function parameter, an unknown function.
// Surfaced with a precise location; never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NotFoundError is an unknown agent/job id.
type NotFoundError struct {
	Kind string // "agent", "job"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// StateError is an operation illegal for the current state: starting an
// already-running agent, reading the result of a non-terminal job.
type StateError struct {
	Operation string
	State     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: current state is %s", e.Operation, e.State)
}

// DependencyError wraps a failure in an external dependency: the inference
// backend, the embedding provider, a downstream HTTP call. The supervisor
// may retry once per cycle for errors of this kind.
type DependencyError struct {
	Component string
	Cause     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency error: %s: %v", e.Component, e.Cause)
}

func (e *DependencyError) Unwrap() error { return e.Cause }

// TimeoutError is a bounded wait that expired, distinct from DependencyError
// (the operation may have succeeded past the caller's deadline).
type TimeoutError struct {
	Operation string
	Cause     error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("timeout: %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("timeout: %s", e.Operation)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// InternalError is an invariant violation or unexpected exception inside a
// component. Logged at ERROR with stack/context by the caller; surfaced to
// HTTP clients as a generic 500; must never terminate the process.
type InternalError struct {
	Component string
	Cause     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Component, e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }
