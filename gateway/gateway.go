// Package gateway exposes the Open Responses SSE streams and background
// task API over HTTP (spec §6), grounded on the teacher's
// ui/transports/sse/sse.go (SSE header set, http.Flusher handling) and
// orchestration/task_api.go (ServeMux route registration, prefix-based id
// extraction, JSON request/response envelopes, component-aware logger
// wiring).
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vertice-labs/agentcore/cache"
	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/mesh"
	"github.com/vertice-labs/agentcore/provider"
	"github.com/vertice-labs/agentcore/router"
	"github.com/vertice-labs/agentcore/streaming"
)

// errForcedByPrompt is what the "__error__" sentinel prompt produces, per
// spec §6: "a special prompt value __error__ forces an error event."
var errForcedByPrompt = errors.New("gateway: __error__ sentinel prompt")

// Responder is the streaming capability the gateway drives. router.VerticeClient
// satisfies this directly.
type Responder interface {
	StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error)
}

// Config configures a Handler.
type Config struct {
	Responder Responder
	Logger    core.Logger
	Telemetry core.Telemetry

	// Router and Mesh are optional: when set, GET /status reports their
	// snapshots alongside the gateway's own task counts, and Mesh also
	// drives the request-time task classification and topology dispatch
	// in chunksFor/dispatch. Neither is required for /agui/* or /healthz
	// to function.
	Router *router.VerticeClient
	Mesh   *mesh.Mesh

	// Cache, when set, wraps every live request in an exact/semantic/hybrid
	// lookup (C4): a hit replays the stored response instead of calling the
	// responder again, and a miss stores the assembled response once the
	// stream completes.
	Cache *cache.CachingMixin
}

func applyDefaults(cfg *Config) {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
}

// Handler serves the /agui/* routes and /healthz.
type Handler struct {
	responder Responder
	logger    core.Logger
	telemetry core.Telemetry
	tasks     *taskStore
	router    *router.VerticeClient
	mesh      *mesh.Mesh
	cache     *cache.CachingMixin
}

// NewHandler constructs a Handler over cfg.
func NewHandler(cfg Config) *Handler {
	applyDefaults(&cfg)
	return &Handler{
		responder: cfg.Responder,
		logger:    core.WithComponent(cfg.Logger, "core/gateway"),
		telemetry: cfg.Telemetry,
		tasks:     newTaskStore(),
		router:    cfg.Router,
		mesh:      cfg.Mesh,
		cache:     cfg.Cache,
	}
}

// RegisterRoutes wires every gateway endpoint onto mux, mirroring the
// teacher's TaskAPIHandler.RegisterRoutes layout: one exact-match pattern
// per fixed path, one prefix pattern for the /{id} family.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/agui/stream", h.handleStream)
	mux.HandleFunc("/agui/tasks", h.handleTasksCollection)
	mux.HandleFunc("/agui/tasks/", h.handleTasksItem)
}

// statusResponse is the debug snapshot SPEC_FULL.md's supplemented
// "/status" endpoint returns: router provider health and mesh topology
// counts when those components were wired, plus the gateway's own task
// counts, which are always available.
type statusResponse struct {
	Providers  []router.ProviderStatus `json:"providers,omitempty"`
	Mesh       *mesh.Status            `json:"mesh,omitempty"`
	Cache      *cache.MixinStats       `json:"cache,omitempty"`
	TasksKnown int                     `json:"tasks_known"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{TasksKnown: h.tasks.count()}
	if h.router != nil {
		resp.Providers = h.router.Status()
	}
	if h.mesh != nil {
		s := h.mesh.Status()
		resp.Mesh = &s
	}
	if h.cache != nil {
		s := h.cache.Stats()
		resp.Cache = &s
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// /healthz
// ═══════════════════════════════════════════════════════════════════════════

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "agent-gateway",
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// GET /agui/stream
// ═══════════════════════════════════════════════════════════════════════════

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")
	sessionID := r.URL.Query().Get("session_id")
	tool := r.URL.Query().Get("tool")

	if prompt == "" {
		http.Error(w, "prompt query parameter required", http.StatusBadRequest)
		return
	}

	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	chunks := h.chunksFor(ctx, prompt, tool)

	responseID := "resp_" + uuid.NewString()
	translator := streaming.NewTranslator(w, h.logger)
	h.telemetry.RecordMetric("gateway.stream_requests_total", 1, map[string]string{"session_id": sessionID})
	if err := translator.Run(responseID, chunks); err != nil {
		h.logger.ErrorWithContext(ctx, "stream translation failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

// chunksFor resolves prompt/tool into a provider.Chunk channel, implementing
// the two gateway-level behaviors spec §6 carves out of the normal provider
// path (the "__error__" sentinel and the tool-insertion query parameter) on
// top of dispatch's mesh-routed, cache-aware call to the responder.
func (h *Handler) chunksFor(ctx context.Context, prompt, tool string) <-chan provider.Chunk {
	if prompt == "__error__" {
		out := make(chan provider.Chunk, 1)
		out <- provider.Chunk{Type: provider.ChunkError, Err: errForcedByPrompt}
		close(out)
		return out
	}

	upstream := h.dispatch(ctx, prompt)
	if tool == "" {
		return upstream
	}
	return prependToolCall(tool, upstream)
}

// prependToolCall inserts one tool_call chunk ahead of upstream's own
// output, satisfying "a tool query parameter inserts at least one
// tool-type event before final" without touching the provider's own
// output.
func prependToolCall(tool string, upstream <-chan provider.Chunk) <-chan provider.Chunk {
	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		out <- provider.Chunk{
			Type: provider.ChunkToolCall,
			ToolCall: &provider.ToolCall{
				ID:    "call_" + uuid.NewString(),
				Name:  tool,
				Input: map[string]interface{}{},
			},
		}
		for c := range upstream {
			out <- c
		}
	}()
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// POST /agui/tasks, GET /agui/tasks/{id}, GET /agui/tasks/{id}/stream
// ═══════════════════════════════════════════════════════════════════════════

type taskSubmitRequest struct {
	Prompt    string `json:"prompt"`
	Tool      string `json:"tool,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type taskSubmitResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

func (h *Handler) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req taskSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		h.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	t := newTask(uuid.NewString(), req.Prompt, req.Tool, req.SessionID)
	h.tasks.put(t)
	h.telemetry.RecordMetric("gateway.tasks_submitted_total", 1, nil)
	go h.runTask(t)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(taskSubmitResponse{TaskID: t.ID, Status: t.getStatus()})
}

// runTask drives the task's stream to completion in the background,
// recording every emitted SSE frame so a subscriber that arrives after the
// task has already finished still sees the full event history.
func (h *Handler) runTask(t *task) {
	t.setStatus(TaskRunning)
	ctx := context.Background()
	chunks := h.chunksFor(ctx, t.Prompt, t.Tool)

	recorder := &recordingWriter{task: t}
	translator := streaming.NewTranslator(recorder, h.logger)
	err := translator.Run("resp_"+t.ID, chunks)

	if err != nil || recorder.sawFailure {
		t.setStatus(TaskFailed)
	} else {
		t.setStatus(TaskCompleted)
	}
	close(t.done)
}

// recordingWriter implements io.Writer, splitting each SSE frame written by
// streaming.Writer back into (event name, payload) pairs for task history
// replay, and watching for a response.failed frame to drive task status.
type recordingWriter struct {
	task       *task
	buf        []byte
	sawFailure bool
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.buf = append(rw.buf, p...)
	for {
		idx := indexDoubleNewline(rw.buf)
		if idx < 0 {
			break
		}
		frame := rw.buf[:idx]
		rw.buf = rw.buf[idx+2:]
		name, data := splitFrame(frame)
		if strings.Contains(string(data), `"response.failed"`) {
			rw.sawFailure = true
		}
		rw.task.appendEvent(name, data)
	}
	return len(p), nil
}

func indexDoubleNewline(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\n' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// splitFrame parses one "event: X\ndata: Y" frame (or the bare
// "data: [DONE]" terminal frame) into its name and payload.
func splitFrame(frame []byte) (name string, data []byte) {
	lines := strings.Split(string(frame), "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = []byte(strings.TrimPrefix(line, "data: "))
		}
	}
	if name == "" {
		name = "message"
	}
	return name, data
}

func (h *Handler) handleTasksItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/agui/tasks/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "task id is required")
		return
	}
	t, ok := h.tasks.get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	switch sub {
	case "":
		h.handleGetTask(w, r, t)
	case "stream":
		h.handleTaskStream(w, r, t)
	default:
		h.writeError(w, http.StatusNotFound, "unknown task sub-resource")
	}
}

type taskStatusResponse struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, t *task) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(taskStatusResponse{TaskID: t.ID, Status: t.getStatus()})
}

// handleTaskStream replays any events already recorded, then — if the task
// hasn't finished yet — waits for the task's done channel to close and
// writes the remaining events in one batch. Events are not relayed one by
// one while the task runs.
func (h *Handler) handleTaskStream(w http.ResponseWriter, r *http.Request, t *task) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	replayed := 0
	flush := func() {
		events := t.snapshotEvents()
		for ; replayed < len(events); replayed++ {
			e := events[replayed]
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
		}
		flusher.Flush()
	}

	// Events only ever append while the task is running and are all
	// present by the time done closes (runTask appends synchronously
	// before closing it), so a subscriber that arrives mid-run only needs
	// to wait once for completion and then flush whatever is new.
	flush()
	select {
	case <-t.done:
		flush()
	case <-r.Context().Done():
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
