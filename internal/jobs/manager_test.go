package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/functions"
)

type blockingFunction struct {
	unblock chan struct{}
}

func (blockingFunction) Name() string        { return "blocking" }
func (blockingFunction) Description() string { return "" }
func (blockingFunction) Category() string    { return "test" }
func (blockingFunction) Schema() functions.Schema {
	return functions.Schema{Name: "blocking"}
}
func (f blockingFunction) Execute(ctx context.Context, _ agentdata.Data) functions.Result {
	select {
	case <-f.unblock:
		return functions.Result{Success: true, ResultData: agentdata.String("done")}
	case <-ctx.Done():
		return functions.Result{Success: false, ErrorMessage: "cancelled"}
	}
}

type panicFunction struct{}

func (panicFunction) Name() string        { return "panicky" }
func (panicFunction) Description() string { return "" }
func (panicFunction) Category() string    { return "test" }
func (panicFunction) Schema() functions.Schema {
	return functions.Schema{Name: "panicky"}
}
func (panicFunction) Execute(context.Context, agentdata.Data) functions.Result {
	panic("boom")
}

func newTestRegistry(fns ...functions.Function) *functions.Registry {
	reg := functions.NewRegistry(nil)
	for _, fn := range fns {
		reg.Register(fn)
	}
	return reg
}

func TestManagerSubmitAndComplete(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(echoTestFunction{})
	m := NewManager(Config{AgentID: "a1", Workers: 2, Registry: reg})
	m.Start()
	defer m.Stop(time.Second)

	id, err := m.Submit(context.Background(), "echo_test", agentdata.Data{"text": agentdata.String("hi")}, 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, _ := m.Status(id)
		if status == StatusCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, ok := m.Status(id)
	if !ok || status != StatusCompleted {
		t.Fatalf("expected job to complete, got %v", status)
	}
	result, _ := m.Result(id)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
}

type echoTestFunction struct{}

func (echoTestFunction) Name() string        { return "echo_test" }
func (echoTestFunction) Description() string { return "" }
func (echoTestFunction) Category() string    { return "test" }
func (echoTestFunction) Schema() functions.Schema {
	return functions.Schema{Name: "echo_test", Parameters: []functions.Parameter{{Name: "text", Type: functions.TypeString, Required: true}}}
}
func (echoTestFunction) Execute(_ context.Context, params agentdata.Data) functions.Result {
	text, _ := params["text"].AsString()
	return functions.Result{Success: true, ResultData: agentdata.String(text)}
}

func TestManagerCancelPendingJob(t *testing.T) {
	reg := newTestRegistry(blockingFunction{unblock: make(chan struct{})})
	// single worker kept busy so the second submission stays PENDING
	m := NewManager(Config{AgentID: "a1", Workers: 1, Registry: reg})
	m.Start()
	defer m.Stop(time.Second)

	firstUnblock := make(chan struct{})
	reg.Register(blockingFunction{unblock: firstUnblock})

	_, err := m.Submit(context.Background(), "blocking", agentdata.Data{}, 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // let the worker pick up the first job

	secondID, err := m.Submit(context.Background(), "blocking", agentdata.Data{}, 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !m.Cancel(secondID) {
		t.Fatal("expected cancelling the still-pending second job to succeed")
	}
	status, _ := m.Status(secondID)
	if status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %v", status)
	}

	close(firstUnblock)
}

func TestManagerCancelRunningJobIsCooperative(t *testing.T) {
	unblock := make(chan struct{})
	reg := newTestRegistry(blockingFunction{unblock: unblock})
	m := NewManager(Config{AgentID: "a1", Workers: 1, Registry: reg})
	m.Start()
	defer m.Stop(time.Second)

	id, _ := m.Submit(context.Background(), "blocking", agentdata.Data{}, 0, "")
	time.Sleep(20 * time.Millisecond)

	if status, _ := m.Status(id); status != StatusRunning {
		t.Fatalf("expected job to be running, got %v", status)
	}

	if !m.Cancel(id) {
		t.Fatal("expected cancel of running job to signal cooperative cancellation")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, _ := m.Status(id)
		if status == StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _ := m.Status(id)
	if status != StatusFailed {
		t.Fatalf("expected cancelled-running job to resolve FAILED via ctx.Done, got %v", status)
	}
}

func TestManagerPanicRecovery(t *testing.T) {
	reg := newTestRegistry(panicFunction{})
	m := NewManager(Config{AgentID: "a1", Workers: 1, Registry: reg})
	m.Start()
	defer m.Stop(time.Second)

	id, _ := m.Submit(context.Background(), "panicky", agentdata.Data{}, 0, "")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, _ := m.Status(id)
		if status == StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	result, _ := m.Result(id)
	if result.Success {
		t.Fatal("expected panic to surface as a failed result")
	}
}

func TestManagerStopCancelsRemainingPending(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)
	reg := newTestRegistry(blockingFunction{unblock: unblock})
	m := NewManager(Config{AgentID: "a1", Workers: 1, Registry: reg})
	m.Start()

	m.Submit(context.Background(), "blocking", agentdata.Data{}, 0, "")
	time.Sleep(20 * time.Millisecond)
	secondID, _ := m.Submit(context.Background(), "blocking", agentdata.Data{}, 0, "")

	m.Stop(100 * time.Millisecond)

	status, _ := m.Status(secondID)
	if status != StatusCancelled {
		t.Fatalf("expected pending job to be cancelled on stop, got %v", status)
	}
}

func TestManagerSubmitRejectedAfterStop(t *testing.T) {
	reg := newTestRegistry()
	m := NewManager(Config{AgentID: "a1", Workers: 1, Registry: reg})
	m.Start()
	m.Stop(time.Second)

	_, err := m.Submit(context.Background(), "anything", agentdata.Data{}, 0, "")
	if err == nil {
		t.Fatal("expected submit to a stopped manager to fail")
	}
}

func TestManagerOnJobCompleteCallback(t *testing.T) {
	reg := newTestRegistry(echoTestFunction{})
	called := make(chan Job, 1)
	m := NewManager(Config{
		AgentID:  "a1",
		Workers:  1,
		Registry: reg,
		OnJobComplete: func(job Job) {
			called <- job
		},
	})
	m.Start()
	defer m.Stop(time.Second)

	m.Submit(context.Background(), "echo_test", agentdata.Data{"text": agentdata.String("x")}, 0, "")

	select {
	case job := <-called:
		if job.Status != StatusCompleted {
			t.Fatalf("expected completed job in callback, got %v", job.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("expected OnJobComplete to be invoked")
	}
}
