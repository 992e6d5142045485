package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS flow_tasks (
    id          TEXT PRIMARY KEY,
    workflow_id TEXT NOT NULL,
    name        TEXT NOT NULL,
    data        JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (workflow_id, name)
);

CREATE TABLE IF NOT EXISTS flow_routing_tasks (
    workflow_id TEXT NOT NULL,
    task_name   TEXT NOT NULL,
    PRIMARY KEY (workflow_id, task_name)
);

CREATE TABLE IF NOT EXISTS flow_routes (
    workflow_id TEXT NOT NULL,
    task_name   TEXT NOT NULL,
    exit_code   INTEGER NOT NULL,
    target      TEXT NOT NULL,
    PRIMARY KEY (workflow_id, task_name, exit_code),
    FOREIGN KEY (workflow_id, task_name)
        REFERENCES flow_routing_tasks(workflow_id, task_name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_flow_tasks_workflow_id ON flow_tasks(workflow_id);
`

// CreateSchema creates the task and routing tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the task and routing tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS flow_routes, flow_routing_tasks, flow_tasks CASCADE;`)
	return err
}
