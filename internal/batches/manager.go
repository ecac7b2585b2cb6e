// Package batches tracks planner batches started by the HTTP server.
//
// Records live in memory for the lifetime of the process. Finished
// results are optionally archived as JSON under the home runs directory.
package batches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/storyforge/internal/planner"
	"github.com/jackzampolin/storyforge/internal/queue"
)

// ErrNotFound is returned for unknown batch IDs.
var ErrNotFound = errors.New("batch not found")

// State represents the lifecycle of a batch.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the batch has finished.
func (s State) Terminal() bool {
	return s != StateRunning
}

// Progress is a live view of the batch's current queue.
type Progress struct {
	Total     int    `json:"total" yaml:"total"`
	Completed int    `json:"completed" yaml:"completed"`
	Failed    int    `json:"failed" yaml:"failed"`
	InFlight  int    `json:"in_flight" yaml:"in_flight"`
	Pending   int    `json:"pending" yaml:"pending"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Record is a snapshot of one batch.
type Record struct {
	ID          string          `json:"id" yaml:"id"`
	Spec        Spec            `json:"spec" yaml:"spec"`
	State       State           `json:"state" yaml:"state"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Progress    Progress        `json:"progress" yaml:"progress"`
	Result      *planner.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

type entry struct {
	record  Record
	planner Planner
	cancel  context.CancelFunc
	q       *queue.Queue
	message string
	stopped bool
	done    chan struct{}
}

// Config configures a Manager.
type Config struct {
	Planner    Planner
	ArchiveDir string // Optional; results are written here as <id>.json
	Logger     *slog.Logger
}

// Manager starts batches in the background and tracks their records.
type Manager struct {
	mu      sync.Mutex
	planner Planner
	archive string
	logger  *slog.Logger
	entries map[string]*entry
	wg      sync.WaitGroup
}

// NewManager creates a batch manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		planner: cfg.Planner,
		archive: cfg.ArchiveDir,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Start validates spec and runs it in the background.
// The batch outlives ctx's cancellation but not Shutdown.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	kind, _ := ParseKind(string(spec.Kind))
	spec.Kind = kind

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{
		record: Record{
			ID:        uuid.New().String(),
			Spec:      spec,
			State:     StateRunning,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.planner == nil {
		m.mu.Unlock()
		cancel()
		return nil, errors.New("no planner configured")
	}
	e.planner = m.planner
	m.entries[e.record.ID] = e
	m.wg.Add(1)
	rec := m.snapshotLocked(e)
	m.mu.Unlock()

	m.logger.Info("batch started", "id", rec.ID, "kind", spec.Kind)

	go m.run(runCtx, e)

	return &rec, nil
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	hooks := Hooks{
		Progress: func(msg string) {
			m.mu.Lock()
			e.message = msg
			m.mu.Unlock()
		},
		OnQueue: func(q *queue.Queue) {
			m.mu.Lock()
			e.q = q
			stopped := e.stopped
			m.mu.Unlock()
			if stopped {
				q.Stop()
			}
		},
		Stopped: func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return e.stopped
		},
	}

	res, err := Execute(ctx, e.planner, e.record.Spec, hooks)

	m.mu.Lock()
	now := time.Now().UTC()
	e.record.CompletedAt = &now
	e.record.Result = &res
	switch {
	case ctx.Err() != nil, e.stopped:
		e.record.State = StateCancelled
	case err != nil:
		e.record.State = StateFailed
		e.record.Error = err.Error()
	default:
		e.record.State = StateCompleted
	}
	rec := m.snapshotLocked(e)
	m.mu.Unlock()

	m.logger.Info("batch finished",
		"id", rec.ID,
		"kind", rec.Spec.Kind,
		"state", rec.State,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"elapsed", res.Elapsed)

	if err := m.writeArchive(rec); err != nil {
		m.logger.Warn("failed to archive batch result", "id", rec.ID, "error", err)
	}
}

// SetPlanner swaps the planner used by batches started afterwards.
// Running batches keep the planner they started with.
func (m *Manager) SetPlanner(p Planner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planner = p
}

// Get returns a batch record by ID.
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := m.snapshotLocked(e)
	return &rec, nil
}

// ListFilter specifies criteria for listing batches.
type ListFilter struct {
	State State // empty = all
	Kind  Kind  // empty = all
	Limit int   // 0 = no limit
}

// List returns batches newest first.
func (m *Manager) List(filter ListFilter) []*Record {
	m.mu.Lock()
	records := make([]*Record, 0, len(m.entries))
	for _, e := range m.entries {
		if filter.State != "" && e.record.State != filter.State {
			continue
		}
		if filter.Kind != "" && e.record.Spec.Kind != filter.Kind {
			continue
		}
		rec := m.snapshotLocked(e)
		records = append(records, &rec)
	}
	m.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records
}

// Stop winds a running batch down. Pending jobs are discarded and no new
// stage starts; in-flight jobs keep running and are still counted.
// Stopping a finished batch is a no-op.
func (m *Manager) Stop(id string) (*Record, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	running := !e.record.State.Terminal() && !e.stopped
	if running {
		e.stopped = true
	}
	q := e.q
	m.mu.Unlock()

	if running {
		m.logger.Info("stopping batch", "id", id)
		if q != nil {
			q.Stop()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.snapshotLocked(e)
	return &rec, nil
}

// Wait blocks until the batch finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.Get(id)
}

// Shutdown cancels every running batch and waits for them to drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, e := range m.entries {
		if !e.record.State.Terminal() {
			e.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) snapshotLocked(e *entry) Record {
	rec := e.record
	rec.Progress.Message = e.message
	if e.q != nil {
		st := e.q.Stats()
		rec.Progress.Total = st.Total
		rec.Progress.Completed = st.Completed
		rec.Progress.Failed = st.Failed
		rec.Progress.InFlight = e.q.InFlight()
		rec.Progress.Pending = e.q.Pending()
	}
	if res := rec.Result; res != nil {
		rec.Progress.Total = res.Total
		rec.Progress.Completed = res.Succeeded
		rec.Progress.Failed = res.Failed
	}
	return rec
}

func (m *Manager) writeArchive(rec Record) error {
	if m.archive == "" {
		return nil
	}
	if err := os.MkdirAll(m.archive, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.archive, rec.ID+".json"), data, 0o644)
}
