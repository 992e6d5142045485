package flow

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRouting = errors.New("flow: invalid routing")
	ErrTaskNotFound   = errors.New("flow: task not found")
	ErrDuplicateTask  = errors.New("flow: duplicate task name")
)

// Store defines the contract for persisting workflow tasks and routings.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Tasks
	AddTask(ctx context.Context, workflowID string, task *Task) (string, error)
	GetTask(ctx context.Context, taskID string) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context, workflowID string) ([]Task, error)

	// Routing (replace semantics)
	SaveRouting(ctx context.Context, workflowID string, g *Graph) error
	GetRouting(ctx context.Context, workflowID string) (*Graph, error)
	DeleteRouting(ctx context.Context, workflowID string) error
}

// SaveRouting persists g for workflowID only if it validates cleanly against
// the workflow's stored tasks. Otherwise it returns a *ValidationError and
// the store is not touched.
func SaveRouting(ctx context.Context, s Store, workflowID string, g *Graph) error {
	tasks, err := s.ListTasks(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("flow: list tasks: %w", err)
	}
	if warnings := Validate(tasks, g); len(warnings) > 0 {
		return &ValidationError{Warnings: warnings}
	}
	return s.SaveRouting(ctx, workflowID, g)
}

// LoadWorkflow reads the tasks and routing of workflowID.
// The routing is empty when none has been saved yet.
func LoadWorkflow(ctx context.Context, s Store, workflowID string) (*Workflow, error) {
	tasks, err := s.ListTasks(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: list tasks: %w", err)
	}
	g, err := s.GetRouting(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: get routing: %w", err)
	}
	if g == nil {
		g = NewGraph()
	}
	return &Workflow{ID: workflowID, Tasks: tasks, Routing: g}, nil
}
