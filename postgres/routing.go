package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/flow"
)

// SaveRouting replaces the whole routing of a workflow in one transaction.
// Validation is the caller's job; see flow.SaveRouting.
func (s *PGStore) SaveRouting(ctx context.Context, workflowID string, g *flow.Graph) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("flow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Routes go with their task rows (ON DELETE CASCADE).
	if _, err := tx.Exec(ctx, `DELETE FROM flow_routing_tasks WHERE workflow_id = $1`, workflowID); err != nil {
		return fmt.Errorf("flow: delete routing: %w", err)
	}

	for _, name := range g.Tasks() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_routing_tasks (workflow_id, task_name) VALUES ($1, $2)`,
			workflowID, name,
		); err != nil {
			return fmt.Errorf("flow: insert routing task %s: %w", name, err)
		}

		m, _ := g.Route(name)
		for _, code := range m.Codes() {
			if _, err := tx.Exec(ctx,
				`INSERT INTO flow_routes (workflow_id, task_name, exit_code, target) VALUES ($1, $2, $3, $4)`,
				workflowID, name, code, string(m[code]),
			); err != nil {
				return fmt.Errorf("flow: insert route %s/%d: %w", name, code, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("flow: commit: %w", err)
	}
	return nil
}

// GetRouting retrieves the routing of a workflow.
// Returns nil, nil if no routing has been saved or the saved routing has no
// tasks.
func (s *PGStore) GetRouting(ctx context.Context, workflowID string) (*flow.Graph, error) {
	rows, err := s.db.Query(ctx,
		`SELECT task_name FROM flow_routing_tasks WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query routing tasks: %w", err)
	}
	defer rows.Close()

	g := flow.NewGraph()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("flow: scan routing task: %w", err)
		}
		g.AddTask(name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows routing tasks: %w", err)
	}

	if g.Len() == 0 {
		return nil, nil
	}

	rows, err = s.db.Query(ctx,
		`SELECT task_name, exit_code, target FROM flow_routes WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("flow: query routes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name   string
			code   int
			target string
		)
		if err := rows.Scan(&name, &code, &target); err != nil {
			return nil, fmt.Errorf("flow: scan route: %w", err)
		}
		g.SetRoute(name, code, flow.Target(target))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flow: rows routes: %w", err)
	}

	return g, nil
}

// DeleteRouting removes the routing of a workflow.
// No error if none exists.
func (s *PGStore) DeleteRouting(ctx context.Context, workflowID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM flow_routing_tasks WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("flow: delete routing: %w", err)
	}
	return nil
}
