package functions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

// Registry is a per-agent mapping from function name to Function (§4.1).
// Registration is idempotent by name; lookup is O(1).
type Registry struct {
	mu     sync.RWMutex
	fns    map[string]Function
	logger *slog.Logger
}

// NewRegistry creates an empty function registry for one agent.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		fns:    make(map[string]Function),
		logger: logger.With("component", "function_registry"),
	}
}

// Register adds or replaces a Function under its own Name(). A replace logs
// a warn, per §4.1.
func (r *Registry) Register(fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fns[fn.Name()]; exists {
		r.logger.Warn("replacing already-registered function", "name", fn.Name())
	}
	r.fns[fn.Name()] = fn
}

// Unregister removes a function by name; a no-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fns, name)
}

// Get returns the Function registered under name, if any.
func (r *Registry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns every registered function name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fns))
	for name := range r.fns {
		out = append(out, name)
	}
	return out
}

// Dispatch validates params against the function's schema and, if valid,
// invokes it. Validation failures never reach Execute — the registry
// returns a failed Result naming the offending parameter (§4.1).
func (r *Registry) Dispatch(ctx context.Context, name string, params agentdata.Data) Result {
	start := time.Now()

	fn, ok := r.Get(name)
	if !ok {
		return Fail(fmt.Sprintf("unknown function: %s", name), start)
	}

	if err := Validate(fn.Schema(), params); err != nil {
		return Fail(err.Error(), start)
	}

	return fn.Execute(ctx, params)
}

// Validate checks params against schema: required parameters must be
// present, declared types must match, and enum-constrained parameters must
// fall within their enum set (§4.1).
func Validate(schema Schema, params agentdata.Data) error {
	for _, p := range schema.Parameters {
		v, present := params[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}

		if err := checkType(p, v); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}

		if len(p.Enum) > 0 {
			s, err := v.AsString()
			if err != nil {
				return fmt.Errorf("parameter %q: enum constraint requires a string value", p.Name)
			}
			if !contains(p.Enum, s) {
				return fmt.Errorf("parameter %q: value %q not in allowed set %v", p.Name, s, p.Enum)
			}
		}
	}
	return nil
}

func checkType(p Parameter, v agentdata.Value) error {
	switch p.Type {
	case TypeString:
		_, err := v.AsString()
		return err
	case TypeInt:
		_, err := v.AsInt()
		return err
	case TypeFloat:
		_, err := v.AsFloat()
		return err
	case TypeBool:
		_, err := v.AsBool()
		return err
	case TypeArray:
		_, err := v.AsStringArray()
		return err
	case TypeObject:
		_, err := v.AsObject()
		return err
	default:
		return nil
	}
}

func contains(set []string, s string) bool {
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}
