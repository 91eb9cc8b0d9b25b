package bus

import (
	"log/slog"
	"sync"
	"time"
)

// EventSink receives a read-only copy of every dispatched message, off the
// dispatcher's hot path (§4.2 EventBridge). A sink must not block long —
// Publish runs on the router's own forwarding goroutine, not the dispatcher.
type EventSink interface {
	Publish(msg Message)
}

// Router is the process-wide MessageRouter (§4.2). A single dispatcher
// goroutine owns an unbounded FIFO queue; Route/Broadcast enqueue and return
// immediately.
type Router struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Message
	handlers map[string]Handler

	stopping bool
	done     chan struct{}
	wg       sync.WaitGroup

	sink     EventSink
	sinkCh   chan Message
	sinkDone chan struct{}

	logger *slog.Logger
}

// NewRouter creates a Router with no sink. Use SetEventSink before Start to
// attach one.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "message_router"),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetEventSink attaches an EventSink. Must be called before Start.
func (r *Router) SetEventSink(sink EventSink) {
	r.sink = sink
}

// Register installs (or replaces) the handler for agentID, logging a warn on
// replace (§4.2).
func (r *Router) Register(agentID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[agentID]; exists {
		r.logger.Warn("replacing handler for already-registered agent", "agent_id", agentID)
	}
	r.handlers[agentID] = h
}

// Unregister removes the handler for agentID, a no-op if absent.
func (r *Router) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, agentID)
}

// Route enqueues a direct delivery to msg.To. Never blocks.
func (r *Router) Route(msg Message) {
	r.enqueue(msg)
}

// Broadcast enqueues msg for fanout to every agent except msg.From. Expansion
// to individual deliveries happens at dispatch time (§4.2), so membership is
// read at the moment the dispatcher pops the message, not at send time.
func (r *Router) Broadcast(msg Message) {
	msg.To = Broadcast
	r.enqueue(msg)
}

func (r *Router) enqueue(msg Message) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()
	r.cond.Signal()
}

// Depth returns the current queue length, for backpressure instrumentation.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Start launches the dispatcher goroutine (and the sink-forwarding goroutine,
// if a sink is attached).
func (r *Router) Start() {
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.dispatchLoop()

	if r.sink != nil {
		r.sinkCh = make(chan Message, 256)
		r.sinkDone = make(chan struct{})
		r.wg.Add(1)
		go r.sinkLoop()
	}
}

// Stop requests shutdown, drains the queue best-effort within timeout, and
// joins the dispatcher (§4.2).
func (r *Router) Stop(timeout time.Duration) {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()
	r.cond.Broadcast()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(timeout):
		r.logger.Warn("router stop timed out before full drain")
	}
}

func (r *Router) dispatchLoop() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.stopping {
			r.cond.Wait()
		}
		if len(r.queue) == 0 && r.stopping {
			r.mu.Unlock()
			r.closeSinkChannel()
			return
		}
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.dispatch(msg)
	}
}

func (r *Router) dispatch(msg Message) {
	if msg.To == Broadcast {
		r.mu.Lock()
		targets := make([]string, 0, len(r.handlers))
		for id := range r.handlers {
			if id != msg.From {
				targets = append(targets, id)
			}
		}
		r.mu.Unlock()

		for _, id := range targets {
			direct := msg
			direct.To = id
			r.deliver(direct)
		}
		return
	}
	r.deliver(msg)
}

func (r *Router) deliver(msg Message) {
	r.mu.Lock()
	h, ok := r.handlers[msg.To]
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("dropping message: no handler registered", "to", msg.To, "message_id", msg.ID)
		return
	}
	h(msg)
	r.publishToSink(msg)
}

func (r *Router) publishToSink(msg Message) {
	if r.sinkCh == nil {
		return
	}
	select {
	case r.sinkCh <- msg:
	default:
		r.logger.Warn("event sink channel full, dropping event", "message_id", msg.ID)
	}
}

func (r *Router) closeSinkChannel() {
	if r.sinkCh != nil {
		close(r.sinkCh)
	}
}

func (r *Router) sinkLoop() {
	defer r.wg.Done()
	defer close(r.sinkDone)
	for msg := range r.sinkCh {
		r.sink.Publish(msg)
	}
}
