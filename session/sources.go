package session

import (
	"context"

	"github.com/meikuraledutech/flow"
)

// StaticTasks is a TaskSource over a fixed task list.
type StaticTasks []flow.Task

// TaskByID returns nil, nil when no task has id.
func (ts StaticTasks) TaskByID(ctx context.Context, id string) (*flow.Task, error) {
	for i := range ts {
		if ts[i].ID == id {
			t := ts[i]
			return &t, nil
		}
	}
	return nil, nil
}

// StoreTasks is a TaskSource backed by a flow.Store. When WorkflowID is
// set, tasks of other workflows are treated as missing.
type StoreTasks struct {
	Store      flow.Store
	WorkflowID string
}

// TaskByID returns nil, nil when the store has no task with id.
func (s StoreTasks) TaskByID(ctx context.Context, id string) (*flow.Task, error) {
	if s.WorkflowID == "" {
		return s.Store.GetTask(ctx, id)
	}
	tasks, err := s.Store.ListTasks(ctx, s.WorkflowID)
	if err != nil {
		return nil, err
	}
	return StaticTasks(tasks).TaskByID(ctx, id)
}
