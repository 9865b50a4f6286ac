package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vertice-labs/agentcore/provider/mock"
	"github.com/vertice-labs/agentcore/router"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	p := mock.New("test-provider")
	p.SetResponses("hello from the mock provider")
	vc := router.New(router.Config{}, p)
	return NewHandler(Config{Responder: vc})
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "agent-gateway" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleStream_RequiresPrompt(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/agui/stream", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStream_EmitsOpenResponsesSequenceEndingInDone(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/agui/stream?prompt=hi", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "response.created") {
		t.Fatalf("missing response.created: %s", body)
	}
	if !strings.Contains(body, "response.completed") {
		t.Fatalf("missing response.completed: %s", body)
	}
	if !strings.HasSuffix(strings.TrimRight(body, "\n"), "data: [DONE]") {
		t.Fatalf("stream did not end in [DONE]: %s", body)
	}
}

func TestHandleStream_ErrorSentinelForcesFailedEvent(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/agui/stream?prompt=__error__", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "response.failed") {
		t.Fatalf("expected response.failed, got: %s", body)
	}
	if strings.Contains(body, "response.completed") {
		t.Fatalf("did not expect response.completed alongside a failure: %s", body)
	}
}

func TestHandleStream_ToolParamInsertsToolCallEvent(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/agui/stream?prompt=hi&tool=search", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "function_call") {
		t.Fatalf("expected a function_call item for the tool parameter, got: %s", body)
	}
}

func TestTaskLifecycle_SubmitGetAndStream(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	submitBody, _ := json.Marshal(taskSubmitRequest{Prompt: "summarize this repo"})
	req := httptest.NewRequest(http.MethodPost, "/agui/tasks", bytes.NewReader(submitBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", rec.Code)
	}
	var submitResp taskSubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitResp.TaskID == "" {
		t.Fatal("expected a non-empty task id")
	}

	// Give the background goroutine started by handleTasksCollection a
	// moment to finish; the mock provider streams from memory with no
	// delay, so this is generous, not load-bearing.
	deadline := time.Now().Add(time.Second)
	var status taskSubmitResponse
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/agui/tasks/"+submitResp.TaskID, nil)
		getRec := httptest.NewRecorder()
		mux.ServeHTTP(getRec, getReq)
		if getRec.Code != http.StatusOK {
			t.Fatalf("get status = %d, want 200", getRec.Code)
		}
		_ = json.Unmarshal(getRec.Body.Bytes(), &status)
		if status.Status == TaskCompleted || status.Status == TaskFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status.Status != TaskCompleted {
		t.Fatalf("task status = %q, want completed", status.Status)
	}

	streamReq := httptest.NewRequest(http.MethodGet, "/agui/tasks/"+submitResp.TaskID+"/stream", nil)
	streamRec := httptest.NewRecorder()
	mux.ServeHTTP(streamRec, streamReq)

	if !strings.Contains(streamRec.Body.String(), "response.completed") {
		t.Fatalf("replayed stream missing response.completed: %s", streamRec.Body.String())
	}
}

func TestHandleStatus_ReportsProvidersWhenRouterWired(t *testing.T) {
	p := mock.New("test-provider")
	p.SetResponses("hi")
	vc := router.New(router.Config{}, p)
	h := NewHandler(Config{Responder: vc, Router: vc})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Providers []struct {
			Name string `json:"name"`
		} `json:"providers"`
		TasksKnown int `json:"tasks_known"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Providers) != 1 || body.Providers[0].Name != "test-provider" {
		t.Fatalf("providers = %+v", body.Providers)
	}
}

func TestHandleTasksItem_UnknownIDReturns404(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/agui/tasks/does-not-exist", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
