package api

import (
	"net/http"

	"github.com/kolosalai/agentruntime/internal/agentdata"
	"github.com/kolosalai/agentruntime/internal/agents"
	"github.com/kolosalai/agentruntime/internal/config"
	"github.com/kolosalai/agentruntime/internal/errs"
)

// agentSummary is one entry of GET /v1/agents (§6C).
type agentSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Role         string   `json:"role"`
	Running      bool     `json:"running"`
	Capabilities []string `json:"capabilities"`
}

func summarize(c *agents.Core) agentSummary {
	return agentSummary{
		ID:           c.ID(),
		Name:         c.Name(),
		Type:         c.Type(),
		Role:         string(c.Role()),
		Running:      c.IsRunning(),
		Capabilities: c.Capabilities(),
	}
}

// handleListAgents serves GET /v1/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	out := make([]agentSummary, 0)
	for _, c := range s.manager.ListAgents() {
		out = append(out, summarize(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateAgent serves POST /v1/agents.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var ac config.AgentConfig
	if err := decodeJSON(r, &ac); err != nil {
		writeError(w, err)
		return
	}
	if ac.ID == "" {
		writeError(w, &errs.ValidationError{Field: "id", Message: "required"})
		return
	}

	id, err := s.manager.CreateAgentFromConfig(ac)
	if err != nil {
		writeError(w, &errs.StateError{Operation: "create_agent", State: err.Error()})
		return
	}
	if ac.AutoStart {
		if err := s.manager.StartAgent(id); err != nil {
			writeError(w, &errs.InternalError{Component: "agent_manager", Cause: err})
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"agent_id": id})
}

// agentInfo is the full detail body of GET /v1/agents/{id} (§6C).
type agentInfo struct {
	agentSummary
	Stats agentdata.Data `json:"stats"`
}

// handleAgentDetail serves GET /v1/agents/{id}.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, ok := s.manager.GetAgent(id)
	if !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}

	stats := c.Statistics()
	writeJSON(w, http.StatusOK, agentInfo{
		agentSummary: summarize(c),
		Stats: agentdata.Data{
			"functions_executed": agentdata.Int(stats.FunctionsExecuted),
			"tools_executed":     agentdata.Int(stats.ToolsExecuted),
			"plans_created":      agentdata.Int(stats.PlansCreated),
			"memory_entries":     agentdata.Int(stats.MemoryEntries),
			"avg_exec_ms":        agentdata.Float(stats.AvgExecMs),
		},
	})
}

// handleStartAgent serves PUT /v1/agents/{id}/start.
func (s *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.manager.GetAgent(id); !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}
	if err := s.manager.StartAgent(id); err != nil {
		writeError(w, &errs.StateError{Operation: "start_agent", State: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStopAgent serves PUT /v1/agents/{id}/stop.
func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.manager.GetAgent(id); !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}
	if err := s.manager.StopAgent(id); err != nil {
		writeError(w, &errs.StateError{Operation: "stop_agent", State: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDeleteAgent serves DELETE /v1/agents/{id}.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.manager.GetAgent(id); !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}
	if err := s.manager.DeleteAgent(id); err != nil {
		writeError(w, &errs.InternalError{Component: "agent_manager", Cause: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// executeRequest is the POST /v1/agents/{id}/execute body (§6C).
type executeRequest struct {
	Function string         `json:"function"`
	Params   map[string]any `json:"params"`
	Priority int            `json:"priority"`
}

// handleExecuteAgent serves POST /v1/agents/{id}/execute: submits an async
// job to the agent's JobManager and returns immediately with a job id
// (§4.8 — the client polls GET /v1/jobs/{job_id} for completion).
func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, ok := s.manager.GetAgent(id)
	if !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Function == "" {
		writeError(w, &errs.ValidationError{Field: "function", Message: "required"})
		return
	}

	jobID, err := c.ExecuteFunctionAsync(r.Context(), req.Function, agentdata.DataFromMap(req.Params), req.Priority)
	if err != nil {
		writeError(w, &errs.StateError{Operation: "execute", State: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}
