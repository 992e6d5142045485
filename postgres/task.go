package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
)

// taskData is the JSONB payload of a flow_tasks row.
type taskData struct {
	Description string          `json:"description,omitempty"`
	ExitCodes   []flow.ExitCode `json:"exit_codes"`
	Params      []flow.Param    `json:"params,omitempty"`
	Recursive   bool            `json:"recursive,omitempty"`
}

func encodeTask(t *flow.Task) ([]byte, error) {
	return json.Marshal(taskData{
		Description: t.Description,
		ExitCodes:   t.ExitCodes,
		Params:      t.Params,
		Recursive:   t.Recursive,
	})
}

func decodeTask(id, name string, data []byte) (flow.Task, error) {
	var d taskData
	if err := json.Unmarshal(data, &d); err != nil {
		return flow.Task{}, fmt.Errorf("flow: decode task %s: %w", id, err)
	}
	return flow.Task{
		ID:          id,
		Name:        name,
		Description: d.Description,
		ExitCodes:   d.ExitCodes,
		Params:      d.Params,
		Recursive:   d.Recursive,
	}, nil
}

// AddTask inserts a task into a workflow.
// If task.ID is empty, a UUID is auto-generated.
// Returns flow.ErrDuplicateTask if the workflow already has a task with that name.
func (s *PGStore) AddTask(ctx context.Context, workflowID string, task *flow.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	data, err := encodeTask(task)
	if err != nil {
		return "", fmt.Errorf("flow: encode task: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO flow_tasks (id, workflow_id, name, data) VALUES ($1, $2, $3, $4)`,
		task.ID, workflowID, task.Name, data,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", flow.ErrDuplicateTask
		}
		return "", fmt.Errorf("flow: insert task: %w", err)
	}

	return task.ID, nil
}

// GetTask fetches a single task by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetTask(ctx context.Context, taskID string) (*flow.Task, error) {
	var (
		name string
		data []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT name, data FROM flow_tasks WHERE id = $1`, taskID,
	).Scan(&name, &data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: get task: %w", err)
	}

	t, err := decodeTask(taskID, name, data)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask updates the name and definition of an existing task.
// Returns flow.ErrTaskNotFound if the task doesn't exist.
func (s *PGStore) UpdateTask(ctx context.Context, task *flow.Task) error {
	data, err := encodeTask(task)
	if err != nil {
		return fmt.Errorf("flow: encode task: %w", err)
	}

	ct, err := s.db.Exec(ctx,
		`UPDATE flow_tasks SET name = $1, data = $2 WHERE id = $3`,
		task.Name, data, task.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return flow.ErrDuplicateTask
		}
		return fmt.Errorf("flow: update task: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return flow.ErrTaskNotFound
	}
	return nil
}

// DeleteTask deletes a task by its ID. Routes naming the task are kept;
// the validator reports them.
// No error if the task doesn't exist.
func (s *PGStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM flow_tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("flow: delete task: %w", err)
	}
	return nil
}

// ListTasks returns all tasks of a workflow, ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListTasks(ctx context.Context, workflowID string) ([]flow.Task, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, data FROM flow_tasks WHERE workflow_id = $1 ORDER BY created_at, id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []flow.Task{}
	for rows.Next() {
		var (
			id, name string
			data     []byte
		)
		if err := rows.Scan(&id, &name, &data); err != nil {
			return nil, fmt.Errorf("flow: scan task: %w", err)
		}
		t, err := decodeTask(id, name, data)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows tasks: %w", err)
	}

	return tasks, nil
}
