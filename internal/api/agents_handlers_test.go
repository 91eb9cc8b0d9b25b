package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleCreateAgent(t *testing.T) {
	s, m := newTestServer(t)

	body := `{"id":"a2","name":"agent-two","role":"ANALYST","max_concurrent_tasks":1,"auto_start":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.testMux().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AgentID != "a2" {
		t.Fatalf("expected agent_id=a2, got %q", resp.AgentID)
	}

	c, ok := m.GetAgent("a2")
	if !ok {
		t.Fatal("expected agent a2 registered")
	}
	if !c.IsRunning() {
		t.Fatal("expected auto_start agent running")
	}
}

func TestHandleCreateAgentMissingID(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"name":"no-id"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.testMux().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleCreateAgentDuplicateID(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"id":"a1","name":"dup"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.testMux().ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}
