package api

import (
	"net/http"

	"github.com/kolosalai/agentruntime/internal/supervisor"
)

// wireLLMBackend is the llm_backend member of the §6C SystemStatus JSON.
type wireLLMBackend struct {
	Running bool `json:"running"`
	Healthy bool `json:"healthy"`
}

type wireAgents struct {
	Total   int `json:"total"`
	Running int `json:"running"`
}

type wireJobs struct {
	Pending        int `json:"pending"`
	Running        int `json:"running"`
	CompletedTotal int `json:"completed_total"`
	FailedTotal    int `json:"failed_total"`
}

// wireSystemStatus is the exact §6C SystemStatus JSON shape, translated from
// the Supervisor's internal SystemStatus snapshot.
type wireSystemStatus struct {
	LLMBackend        wireLLMBackend `json:"llm_backend"`
	Agents            wireAgents     `json:"agents"`
	Jobs              wireJobs       `json:"jobs"`
	AvgResponseTimeMs float64        `json:"avg_response_time_ms"`
	LastHealthCheck   int64          `json:"last_health_check_unix"`
}

// toWireStatus translates a Supervisor snapshot into the §6C wire shape.
// llm_backend aggregates across every configured inference engine: healthy
// only if every engine reports healthy; running means at least one engine
// was configured and polled.
func toWireStatus(s supervisor.SystemStatus) wireSystemStatus {
	backend := wireLLMBackend{Running: len(s.Backends) > 0, Healthy: len(s.Backends) > 0}
	for _, b := range s.Backends {
		if !b.Healthy {
			backend.Healthy = false
		}
	}

	var sumExec float64
	var withActivity int
	for _, a := range s.Agents.Agents {
		if a.Stats.FunctionsExecuted > 0 {
			sumExec += a.Stats.AvgExecMs
			withActivity++
		}
	}
	var avg float64
	if withActivity > 0 {
		avg = sumExec / float64(withActivity)
	}

	return wireSystemStatus{
		LLMBackend: backend,
		Agents: wireAgents{
			Total:   s.Agents.TotalAgents,
			Running: s.Agents.RunningAgents,
		},
		AvgResponseTimeMs: avg,
		LastHealthCheck:   s.Timestamp.Unix(),
	}
}

// wireStatusNow translates the Supervisor's latest snapshot to the §6C wire
// shape and fills in the jobs aggregate from the live AgentManager (the
// Supervisor snapshot itself carries no job counts). Shared by the polling
// route and the status stream so both report the same numbers.
func (s *Server) wireStatusNow() wireSystemStatus {
	var status supervisor.SystemStatus
	if s.supervisor != nil {
		status, _ = s.supervisor.Latest()
	}

	wire := toWireStatus(status)
	if s.manager != nil {
		counts := s.manager.JobStatusCounts()
		wire.Jobs = wireJobs{
			Pending:        counts.Pending,
			Running:        counts.Running,
			CompletedTotal: counts.Completed,
			FailedTotal:    counts.Failed,
		}
	}
	return wire
}

// handleSystemStatus serves GET /v1/system/status.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wireStatusNow())
}
