package memory

import (
	"sync"

	"github.com/kolosalai/agentruntime/internal/agentdata"
)

// WorkingMemory is the non-persistent scratch area from §4.3: a keyed
// context map, a goal stack, a variables map, and a current-task string.
// It is cleared whenever the owning agent stops.
type WorkingMemory struct {
	mu          sync.RWMutex
	context     map[string]agentdata.Value
	goals       []string
	variables   map[string]string
	currentTask string
}

// NewWorkingMemory creates an empty working memory scratch area.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{
		context:   make(map[string]agentdata.Value),
		variables: make(map[string]string),
	}
}

// SetContext records a keyed value in the context map.
func (w *WorkingMemory) SetContext(key string, value agentdata.Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.context[key] = value
}

// GetContext returns the value stored under key, if any.
func (w *WorkingMemory) GetContext(key string) (agentdata.Value, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.context[key]
	return v, ok
}

// Context returns a copy of the entire context map.
func (w *WorkingMemory) Context() map[string]agentdata.Value {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]agentdata.Value, len(w.context))
	for k, v := range w.context {
		out[k] = v
	}
	return out
}

// PushGoal pushes a goal onto the goal stack.
func (w *WorkingMemory) PushGoal(goal string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.goals = append(w.goals, goal)
}

// PopGoal removes and returns the top of the goal stack, if non-empty.
func (w *WorkingMemory) PopGoal() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.goals) == 0 {
		return "", false
	}
	top := w.goals[len(w.goals)-1]
	w.goals = w.goals[:len(w.goals)-1]
	return top, true
}

// PeekGoal returns the top of the goal stack without removing it.
func (w *WorkingMemory) PeekGoal() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.goals) == 0 {
		return "", false
	}
	return w.goals[len(w.goals)-1], true
}

// SetVariable records a string variable.
func (w *WorkingMemory) SetVariable(name, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.variables[name] = value
}

// GetVariable returns a recorded variable, if any.
func (w *WorkingMemory) GetVariable(name string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.variables[name]
	return v, ok
}

// SetCurrentTask records the task description the agent is presently working.
func (w *WorkingMemory) SetCurrentTask(task string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentTask = task
}

// CurrentTask returns the task description set via SetCurrentTask.
func (w *WorkingMemory) CurrentTask() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentTask
}

// Clear resets every scratch area to empty, per the stop-time contract in §4.3.
func (w *WorkingMemory) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.context = make(map[string]agentdata.Value)
	w.goals = nil
	w.variables = make(map[string]string)
	w.currentTask = ""
}
