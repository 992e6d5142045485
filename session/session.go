// Package session tracks a user driving task execution: which task is
// selected, its pending inputs, the execution status and recent runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
	"go.uber.org/zap"
)

var (
	ErrNoTaskSelected  = errors.New("session: no task selected")
	ErrBusy            = errors.New("session: execution already in progress")
	ErrExecutionFailed = errors.New("session: execution failed")
)

// DefaultHistoryLimit is how many recent executions are kept.
const DefaultHistoryLimit = 10

// Status is the execution status of a session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
)

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Runner runs a task. It is the only way a session executes anything.
type Runner interface {
	RunTask(ctx context.Context, taskID string, inputs map[string]any) (flow.TaskResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, taskID string, inputs map[string]any) (flow.TaskResult, error)

func (f RunnerFunc) RunTask(ctx context.Context, taskID string, inputs map[string]any) (flow.TaskResult, error) {
	return f(ctx, taskID, inputs)
}

// Notifier is a fire-and-forget sink for user-facing messages.
type Notifier interface {
	Notify(message string, severity Severity)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, severity Severity)

func (f NotifierFunc) Notify(message string, severity Severity) { f(message, severity) }

// TaskSource looks tasks up by ID.
type TaskSource interface {
	TaskByID(ctx context.Context, id string) (*flow.Task, error)
}

// Execution is one successful run kept in the history.
type Execution struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	TaskName  string          `json:"task_name"`
	Inputs    map[string]any  `json:"inputs"`
	Result    flow.TaskResult `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// State is a snapshot of a session.
type State struct {
	SelectedTask     *flow.Task     `json:"selected_task"`
	InputValues      map[string]any `json:"input_values"`
	Status           Status         `json:"status"`
	RecentExecutions []Execution    `json:"recent_executions"`
}

// Session is safe for concurrent use. At most one Execute may be in flight;
// a second call fails with ErrBusy.
type Session struct {
	runner   Runner
	notifier Notifier
	tasks    TaskSource
	limit    int
	now      func() time.Time
	log      *zap.Logger

	mu       sync.Mutex
	selected *flow.Task
	inputs   map[string]any
	status   Status
	history  []Execution
	inFlight bool
	// selection counts SelectTask calls so a run finishing after the user
	// moved on does not flip the new task's status.
	selection uint64
}

// Option configures a Session.
type Option func(*Session)

// WithHistoryLimit sets how many recent executions are kept.
func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock sets the time source for execution timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an idle session with no selection.
func New(runner Runner, notifier Notifier, tasks TaskSource, opts ...Option) *Session {
	s := &Session{
		runner:   runner,
		notifier: notifier,
		tasks:    tasks,
		limit:    DefaultHistoryLimit,
		now:      time.Now,
		log:      zap.NewNop(),
		inputs:   make(map[string]any),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectTask makes task the current task, clearing inputs and status.
func (s *Session) SelectTask(task flow.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(task)
}

func (s *Session) selectLocked(task flow.Task) {
	t := task
	s.selected = &t
	s.inputs = make(map[string]any)
	s.status = StatusIdle
	s.selection++
}

// SetInput stores one input value. Values are kept as given.
func (s *Session) SetInput(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[key] = value
}

// SetAllInputs replaces every input value.
func (s *Session) SetAllInputs(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = copyInputs(values)
}

// Execute runs the selected task with the current inputs. On success the
// run is prepended to the history and returned. On failure the status
// returns to idle, nothing is recorded, the notifier is told and
// ErrExecutionFailed is returned.
func (s *Session) Execute(ctx context.Context) (Execution, error) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return Execution{}, ErrNoTaskSelected
	}
	if s.inFlight {
		s.mu.Unlock()
		return Execution{}, ErrBusy
	}
	task := *s.selected
	inputs := copyInputs(s.inputs)
	selection := s.selection
	s.inFlight = true
	s.status = StatusInProgress
	s.mu.Unlock()

	s.log.Debug("executing task", zap.String("task_id", task.ID), zap.String("task_name", task.Name))
	result, err := s.runner.RunTask(ctx, task.ID, inputs)

	s.mu.Lock()
	s.inFlight = false
	current := selection == s.selection
	if err != nil {
		if current {
			s.status = StatusIdle
		}
		s.mu.Unlock()
		s.log.Warn("task execution failed",
			zap.String("task_id", task.ID),
			zap.String("task_name", task.Name),
			zap.Error(err),
		)
		s.notify(fmt.Sprintf("Execution of %s failed", task.Name), SeverityError)
		return Execution{}, ErrExecutionFailed
	}

	exec := Execution{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		TaskName:  task.Name,
		Inputs:    inputs,
		Result:    result,
		Timestamp: s.now(),
	}
	s.history = append([]Execution{exec}, s.history...)
	if len(s.history) > s.limit {
		s.history = s.history[:s.limit]
	}
	if current {
		s.status = StatusSuccess
	}
	s.mu.Unlock()

	s.log.Info("task executed",
		zap.String("task_id", task.ID),
		zap.String("task_name", task.Name),
		zap.Int("exit_code", result.ExitCode),
	)
	s.notify(fmt.Sprintf("Executed %s", task.Name), SeveritySuccess)
	return exec, nil
}

// Rerun stages a past execution: its task is selected again and its inputs
// restored. Status and history are left alone and nothing is executed. If
// the task no longer exists Rerun does nothing. Only a failing TaskSource
// produces an error.
func (s *Session) Rerun(ctx context.Context, exec Execution) error {
	task, err := s.tasks.TaskByID(ctx, exec.TaskID)
	if err != nil {
		return fmt.Errorf("session: look up task: %w", err)
	}
	if task == nil {
		s.log.Debug("rerun target gone", zap.String("task_id", exec.TaskID))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := *task
	// selection is not bumped: a run in flight still settles the status.
	s.selected = &t
	s.inputs = copyInputs(exec.Inputs)
	return nil
}

// Execution returns the history entry with id.
func (s *Session) Execution(id string) (Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.history {
		if e.ID == id {
			return e, true
		}
	}
	return Execution{}, false
}

// Next returns where g routes the selected task after its latest recorded
// run. It reports false when there is no such run or no route.
func (s *Session) Next(g *flow.Graph) (flow.Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return "", false
	}
	for _, e := range s.history {
		if e.TaskID == s.selected.ID {
			return g.Next(s.selected.Name, e.Result.ExitCode)
		}
	}
	return "", false
}

// Reset clears selection, inputs, status and history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.inputs = make(map[string]any)
	s.status = StatusIdle
	s.history = nil
	s.selection++
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		InputValues:      copyInputs(s.inputs),
		Status:           s.status,
		RecentExecutions: append([]Execution{}, s.history...),
	}
	if s.selected != nil {
		t := *s.selected
		st.SelectedTask = &t
	}
	return st
}

func (s *Session) notify(msg string, sev Severity) {
	if s.notifier != nil {
		s.notifier.Notify(msg, sev)
	}
}

func copyInputs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
