// Package memory implements flow.Store in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
)

type taskRow struct {
	workflowID string
	seq        int
	task       flow.Task
}

// Store implements flow.Store with maps guarded by a mutex.
// Tasks are listed in insertion order, like the postgres store's created_at order.
type Store struct {
	mu       sync.RWMutex
	seq      int
	tasks    map[string]*taskRow
	routings map[string]*flow.Graph
}

// New creates an empty Store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.tasks = make(map[string]*taskRow)
	s.routings = make(map[string]*flow.Graph)
}

// CreateSchema is a no-op; the maps always exist.
func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema discards everything.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// AddTask stores a copy of task. If task.ID is empty a UUID is generated.
func (s *Store) AddTask(ctx context.Context, workflowID string, task *flow.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(workflowID, task.Name, "") {
		return "", flow.ErrDuplicateTask
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	s.seq++
	s.tasks[task.ID] = &taskRow{workflowID: workflowID, seq: s.seq, task: copyTask(*task)}
	return task.ID, nil
}

// GetTask returns nil, nil if not found.
func (s *Store) GetTask(ctx context.Context, taskID string) (*flow.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	t := copyTask(row.task)
	return &t, nil
}

// UpdateTask replaces a stored task. Returns flow.ErrTaskNotFound if absent.
func (s *Store) UpdateTask(ctx context.Context, task *flow.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tasks[task.ID]
	if !ok {
		return flow.ErrTaskNotFound
	}
	if s.nameTaken(row.workflowID, task.Name, task.ID) {
		return flow.ErrDuplicateTask
	}
	row.task = copyTask(*task)
	return nil
}

// DeleteTask removes a task. The routing is left as is.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

// ListTasks returns the tasks of workflowID in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListTasks(ctx context.Context, workflowID string) ([]flow.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*taskRow, 0)
	for _, row := range s.tasks {
		if row.workflowID == workflowID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	tasks := make([]flow.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, copyTask(row.task))
	}
	return tasks, nil
}

// SaveRouting replaces the routing of workflowID.
func (s *Store) SaveRouting(ctx context.Context, workflowID string, g *flow.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routings[workflowID] = g.Clone()
	return nil
}

// GetRouting returns nil, nil if no routing was saved or the saved routing
// has no tasks, matching the postgres store.
func (s *Store) GetRouting(ctx context.Context, workflowID string) (*flow.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.routings[workflowID]
	if !ok || g.Len() == 0 {
		return nil, nil
	}
	return g.Clone(), nil
}

// DeleteRouting removes the routing of workflowID.
func (s *Store) DeleteRouting(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routings, workflowID)
	return nil
}

func (s *Store) nameTaken(workflowID, name, exceptID string) bool {
	for id, row := range s.tasks {
		if id != exceptID && row.workflowID == workflowID && row.task.Name == name {
			return true
		}
	}
	return false
}

func copyTask(t flow.Task) flow.Task {
	t.ExitCodes = append([]flow.ExitCode(nil), t.ExitCodes...)
	t.Params = append([]flow.Param(nil), t.Params...)
	return t
}
