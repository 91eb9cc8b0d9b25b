package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kolosalai/agentruntime/internal/security"
	"github.com/kolosalai/agentruntime/internal/supervisor"
)

// statusBroadcaster fans out Supervisor SystemStatus snapshots to every
// connected /v1/system/status/stream client (C13). It implements
// supervisor.StatusPublisher.
type statusBroadcaster struct {
	mu      sync.Mutex
	clients map[chan supervisor.SystemStatus]struct{}
	logger  *slog.Logger
}

func newStatusBroadcaster(logger *slog.Logger) *statusBroadcaster {
	return &statusBroadcaster{
		clients: make(map[chan supervisor.SystemStatus]struct{}),
		logger:  logger,
	}
}

// Publish implements supervisor.StatusPublisher.
func (b *statusBroadcaster) Publish(status supervisor.SystemStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- status:
		default:
			// Slow client: drop the frame rather than block the supervisor cycle.
		}
	}
}

func (b *statusBroadcaster) subscribe() chan supervisor.SystemStatus {
	ch := make(chan supervisor.SystemStatus, 4)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *statusBroadcaster) unsubscribe(ch chan supervisor.SystemStatus) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *statusBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}

// handleStatusStream upgrades to a WebSocket and pushes one JSON SystemStatus
// frame per Supervisor cycle plus an immediate frame on connect. It never
// reads from the client beyond the close handshake (§4.8).
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if s.jwtSecret != nil {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}
		if _, err := security.ValidateToken(tokenStr, s.jwtSecret); err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error("status stream websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := r.Context()
	ch := s.broadcast.subscribe()
	defer s.broadcast.unsubscribe(ch)

	if err := wsjson.Write(ctx, conn, s.wireStatusNow()); err != nil {
		return
	}

	// closeSignal detects the client-initiated close handshake without ever
	// acting on message content (read-only beyond the handshake, per §4.8).
	closeSignal := make(chan struct{})
	go func() {
		defer close(closeSignal)
		var discard any
		for {
			if err := wsjson.Read(ctx, conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closeSignal:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, s.wireStatusNow()); err != nil {
				s.logger.Debug("status stream write ended", "error", err)
				return
			}
		}
	}
}
