package api

import (
	"net/http"

	"github.com/kolosalai/agentruntime/internal/errs"
)

// jobStatusResponse is the GET /v1/jobs/{job_id} body (§6C).
type jobStatusResponse struct {
	JobID   string `json:"job_id"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
	Result  *struct {
		Success         bool   `json:"success"`
		ErrorMessage    string `json:"error_message,omitempty"`
		ExecutionTimeMs int64  `json:"execution_time_ms"`
	} `json:"result,omitempty"`
}

// handleJobStatus serves GET /v1/jobs/{job_id}, searching every registered
// agent's JobManager since job ids are assigned without an agent prefix.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	agentID, job, ok := s.manager.FindJob(jobID)
	if !ok {
		writeError(w, &errs.NotFoundError{Kind: "job", ID: jobID})
		return
	}

	resp := jobStatusResponse{JobID: job.ID, AgentID: agentID, Status: string(job.Status)}
	if !job.FinishedAt.IsZero() {
		resp.Result = &struct {
			Success         bool   `json:"success"`
			ErrorMessage    string `json:"error_message,omitempty"`
			ExecutionTimeMs int64  `json:"execution_time_ms"`
		}{
			Success:         job.Result.Success,
			ErrorMessage:    job.Result.ErrorMessage,
			ExecutionTimeMs: job.Result.ExecutionTimeMs,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// jobHistoryEntry is one entry of GET /v1/agents/{id}/jobs (§6C, from C14).
type jobHistoryEntry struct {
	JobID        string `json:"job_id"`
	FunctionName string `json:"function_name"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleAgentJobs serves GET /v1/agents/{id}/jobs from the retention store
// (C14); returns an empty list when no store is configured.
func (s *Server) handleAgentJobs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.manager.GetAgent(id); !ok {
		writeError(w, &errs.NotFoundError{Kind: "agent", ID: id})
		return
	}

	records, err := s.manager.JobHistory(id, 0)
	if err != nil {
		writeError(w, &errs.DependencyError{Component: "job_store", Cause: err})
		return
	}

	out := make([]jobHistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, jobHistoryEntry{
			JobID:        rec.JobID,
			FunctionName: rec.FunctionName,
			Status:       rec.Status,
			Success:      rec.Success,
			ErrorMessage: rec.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
