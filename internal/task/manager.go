// Package task tracks upload tasks, runs their workers on a bounded pool,
// and writes each finished batch back to its ledger file.
package task

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
	"github.com/tingwen/kplus-repair-uploader/internal/worker"
)

// cancelWait bounds how long Cancel and Retry wait for a worker to observe
// the cancellation flag before giving up on it.
const cancelWait = 3 * time.Second

// ClientFactory builds a fresh remote client for each task, so tasks never
// share session state.
type ClientFactory func() worker.RecordClient

// Listener receives every event a task's worker emits.
type Listener func(taskID string, ev worker.Event)

type task struct {
	id           string
	filePath     string // current ledger file, updated after rename
	originalFile string // file the task was started with
	retry        bool
	worker       *worker.Worker
	listener     Listener
	consumed     chan struct{} // closed once all events are forwarded
}

// Manager owns the task registry. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*task
	pool    *ants.Pool
	factory ClientFactory
}

func NewManager(factory ClientFactory, maxConcurrent int) (*Manager, error) {
	pool, err := ants.NewPool(maxConcurrent, ants.WithOptions(ants.Options{
		ExpiryDuration: time.Minute,
		Nonblocking:    false,
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Manager{
		tasks:   make(map[string]*task),
		pool:    pool,
		factory: factory,
	}, nil
}

// Start registers a new task for filePath and submits its worker to the
// pool. It returns the task id immediately; outcomes arrive via listener.
func (m *Manager) Start(filePath string, retryMode bool, listener Listener) (string, error) {
	id := uuid.NewString()[:8]
	w := worker.New(filePath, retryMode, m.factory())

	t := &task{
		id:           id,
		filePath:     filePath,
		originalFile: filePath,
		retry:        retryMode,
		worker:       w,
		listener:     listener,
		consumed:     make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[id] = t
	m.mu.Unlock()

	go m.consume(t)

	if err := m.pool.Submit(func() {
		w.Run(context.Background())
	}); err != nil {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
		return "", fmt.Errorf("submit task: %w", err)
	}

	log.Info().Str("task", id).Str("file", filePath).Bool("retry", retryMode).Msg("task started")
	return id, nil
}

// consume forwards worker events to the task's listener. The ledger
// write-back happens before the listener sees FinishedEvent, so by the time
// a listener reacts the file on disk already reflects the outcome.
func (m *Manager) consume(t *task) {
	defer close(t.consumed)
	for ev := range t.worker.Events() {
		if fin, ok := ev.(worker.FinishedEvent); ok {
			m.handleFinished(t, fin)
		}
		if t.listener != nil {
			t.listener(t.id, ev)
		}
	}
}

func (m *Manager) handleFinished(t *task, fin worker.FinishedEvent) {
	written, err := ledger.WriteResults(t.filePath, fin.Results)
	if err != nil {
		log.Error().Err(err).Str("task", t.id).Str("file", t.filePath).Msg("result write-back failed")
		return
	}
	if written == "" {
		return
	}

	m.mu.Lock()
	t.filePath = written
	m.mu.Unlock()
	log.Info().Str("task", t.id).Str("file", written).Bool("success", fin.Success).Msg("task finished")
}

// Retry cancels the task's worker if still running, locates the latest
// ledger file for it, and starts a replacement task in retry mode with the
// same listener. It returns the new task id.
func (m *Manager) Retry(id string) (string, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("未知任务: %s", id)
	}

	retryFile, err := resolveRetryFile(t.originalFile)
	if err != nil {
		return "", err
	}

	t.worker.Cancel()
	select {
	case <-t.worker.Done():
	case <-time.After(cancelWait):
		log.Warn().Str("task", id).Msg("worker did not stop within the cancel window")
	}

	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()

	return m.Start(retryFile, true, t.listener)
}

// resolveRetryFile finds the file a retry should read: the original path if
// it still exists, else its _fail or _done sibling left by the write-back.
func resolveRetryFile(original string) (string, error) {
	if _, err := os.Stat(original); err == nil {
		return original, nil
	}
	base := strings.TrimSuffix(original, ".txt")
	base = strings.TrimSuffix(base, "_fail")
	base = strings.TrimSuffix(base, "_done")
	for _, candidate := range []string{base + "_fail.txt", base + "_done.txt"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("无法找到重试文件: %s", original)
}

// DeleteRecord removes one record from the task's current ledger file. The
// caller must not invoke it while the task's worker is still running; the
// worker holds its own line list and would resurrect the record on
// write-back.
func (m *Manager) DeleteRecord(id, productFID string) (int, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	var path string
	if ok {
		path = t.filePath
	}
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("未知任务: %s", id)
	}
	return ledger.DeleteRecord(path, productFID)
}

// Remove cancels the task's worker and drops it from the registry. The
// ledger file is left untouched.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	t.worker.Cancel()
	select {
	case <-t.worker.Done():
	case <-time.After(cancelWait):
		log.Warn().Str("task", id).Msg("worker did not stop within the cancel window")
	}
}

// Wait blocks until the task's worker has stopped and its results have been
// written back. It returns false for an unknown id.
func (m *Manager) Wait(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	<-t.consumed
	return true
}

// CurrentFile reports the task's ledger path, following any rename done by
// the write-back.
func (m *Manager) CurrentFile(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return "", false
	}
	return t.filePath, true
}

// Shutdown releases the worker pool. Running workers are cancelled first.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
	m.pool.Release()
}
