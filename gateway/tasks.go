package gateway

import (
	"sync"
	"time"
)

// TaskStatus mirrors the terminal-state vocabulary the teacher's
// orchestration/task_api.go returns from its TaskStore.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// task is the in-memory record a submitted /agui/tasks request produces.
// events accumulates every SSE event its background run emits so a late
// GET .../stream subscriber can replay history, then receive the rest once
// the task finishes.
type task struct {
	mu        sync.Mutex
	ID        string
	Prompt    string
	Tool      string
	SessionID string
	Status    TaskStatus
	CreatedAt time.Time
	events    []taskEvent
	done      chan struct{}
}

type taskEvent struct {
	name string
	data []byte
}

func newTask(id, prompt, tool, sessionID string) *task {
	return &task{
		ID:        id,
		Prompt:    prompt,
		Tool:      tool,
		SessionID: sessionID,
		Status:    TaskQueued,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (t *task) appendEvent(name string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, taskEvent{name: name, data: data})
}

func (t *task) snapshotEvents() []taskEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]taskEvent, len(t.events))
	copy(out, t.events)
	return out
}

func (t *task) setStatus(s TaskStatus) {
	t.mu.Lock()
	t.Status = s
	t.mu.Unlock()
}

func (t *task) getStatus() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status
}

// taskStore is a process-local task registry. The teacher's equivalent
// (core.TaskStore) is backed by Redis for multi-instance deployments; this
// gateway is a single-process demo surface, so an in-memory map is enough —
// RecordMetric/Logger wiring is what changes between the two, not the
// storage shape.
type taskStore struct {
	mu    sync.RWMutex
	tasks map[string]*task
}

func newTaskStore() *taskStore {
	return &taskStore{tasks: make(map[string]*task)}
}

func (s *taskStore) put(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *taskStore) get(id string) (*task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *taskStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
