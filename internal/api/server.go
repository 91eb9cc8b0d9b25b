// Package api implements the ManagementAPI (C9): a thin JSON translation
// layer over AgentManager and AgentCore, plus the StatusStream (C13)
// WebSocket endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kolosalai/agentruntime/internal/agents"
	"github.com/kolosalai/agentruntime/internal/config"
	"github.com/kolosalai/agentruntime/internal/errs"
	"github.com/kolosalai/agentruntime/internal/security"
	"github.com/kolosalai/agentruntime/internal/supervisor"
)

// Server is the ManagementAPI's HTTP server: one mux, wired to an
// AgentManager and a Supervisor, running on its own port separate from any
// inference backend (§4.8).
type Server struct {
	port       int
	manager    *agents.Manager
	supervisor *supervisor.Supervisor
	configPath string
	jwtSecret  []byte
	logger     *slog.Logger
	httpServer *http.Server
	broadcast  *statusBroadcaster
}

// Config controls the ManagementAPI server's wiring.
type Config struct {
	Port       int
	Manager    *agents.Manager
	Supervisor *supervisor.Supervisor
	// ConfigPath is re-read by POST /v1/system/reload when the request body
	// omits config_path.
	ConfigPath string
	Logger     *slog.Logger
}

// NewServer builds a Server. It does not start listening until Start.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "management_api")

	secret := security.GetJWTSecret()
	if secret == nil {
		logger.Warn("KOLOSAL_JWT_SECRET not set — running in dev mode (unauthenticated API access)")
	}

	s := &Server{
		port:       cfg.Port,
		manager:    cfg.Manager,
		supervisor: cfg.Supervisor,
		configPath: cfg.ConfigPath,
		jwtSecret:  secret,
		logger:     logger,
		broadcast:  newStatusBroadcaster(logger),
	}
	if s.supervisor != nil {
		s.supervisor.SetStatusStream(s.broadcast)
	}
	return s
}

// Start installs routes and middleware and serves until ctx is cancelled,
// then performs a bounded graceful shutdown (§5, default 5 s).
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /v1/agents", s.handleListAgents)
	mux.HandleFunc("POST /v1/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /v1/agents/{id}", s.handleAgentDetail)
	mux.HandleFunc("PUT /v1/agents/{id}/start", s.handleStartAgent)
	mux.HandleFunc("PUT /v1/agents/{id}/stop", s.handleStopAgent)
	mux.HandleFunc("DELETE /v1/agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("POST /v1/agents/{id}/execute", s.handleExecuteAgent)
	mux.HandleFunc("GET /v1/agents/{id}/jobs", s.handleAgentJobs)

	mux.HandleFunc("GET /v1/jobs/{job_id}", s.handleJobStatus)

	mux.HandleFunc("GET /v1/system/status", s.handleSystemStatus)
	mux.HandleFunc("GET /v1/system/status/stream", s.handleStatusStream)
	mux.HandleFunc("POST /v1/system/reload", s.handleSystemReload)

	handler := s.corsMiddleware(s.loggingMiddleware(s.authMiddleware(s.rbacMiddleware(mux))))

	s.httpServer = &http.Server{
		Addr:         addrFromPort(s.port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no write timeout: required for the status-stream WebSocket
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("management API starting", "port", s.port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down management API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.broadcast.closeAll()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func addrFromPort(port int) string {
	if port <= 0 {
		port = 8090
	}
	return ":" + strconv.Itoa(port)
}

// authMiddleware wraps every route except /healthz, OPTIONS preflights and
// the status stream in JWT bearer-token validation (§4.8). The status stream
// validates the same token itself, taken from its ?token query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	jwtWrapped := security.AuthMiddleware(s.jwtSecret)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || r.URL.Path == "/healthz" || r.URL.Path == "/v1/system/status/stream" {
			next.ServeHTTP(w, r)
			return
		}
		jwtWrapped.ServeHTTP(w, r)
	})
}

// rbacMiddleware enforces the owner/agent/readonly route table (§4.8, §7).
// A request with no claims means dev mode (no JWT secret configured) and
// passes through unchecked, mirroring AuthMiddleware's own dev-mode posture.
func (s *Server) rbacMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := security.GetClaims(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !security.CheckPermission(claims.Role, r.Method, r.URL.Path) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error": map[string]any{
					"type":    "forbidden",
					"code":    http.StatusForbidden,
					"message": security.ErrInsufficientRole.Error(),
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// corsMiddleware adds permissive CORS headers to every response and answers OPTIONS
// preflights directly (§6C).
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSystemReload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigPath string `json:"config_path"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	path := req.ConfigPath
	if path == "" {
		path = s.configPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		writeError(w, &errs.ValidationError{Field: "config_path", Message: err.Error()})
		return
	}

	if s.supervisor != nil {
		s.supervisor.SetConfig(cfg)
	}
	if _, err := s.manager.ReloadConfiguration(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"reloaded": true})
}
