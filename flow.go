package flow

import "encoding/json"

// ParamType is the primitive type of a task input parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
)

// Task is a unit of work that finishes with one of its declared exit codes.
// Name is unique within a workflow and is the key used by the routing graph.
type Task struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	ExitCodes   []ExitCode `json:"exit_codes" yaml:"exit_codes"`
	Params      []Param    `json:"params,omitempty" yaml:"params,omitempty"`
	// Recursive tasks are allowed to route back to themselves.
	Recursive bool `json:"recursive,omitempty" yaml:"recursive,omitempty"`
}

// ExitCode is a code a task run may complete with.
type ExitCode struct {
	Code        int    `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Param declares a named task input.
type Param struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
}

// ExitCodeDescription returns the description declared for code, if any.
func (t *Task) ExitCodeDescription(code int) (string, bool) {
	for _, ec := range t.ExitCodes {
		if ec.Code == code {
			return ec.Description, true
		}
	}
	return "", false
}

// TaskResult is what a task run reports back.
type TaskResult struct {
	ExitCode int             `json:"exit_code"`
	Output   json.RawMessage `json:"output,omitempty"`
	Logs     []string        `json:"logs,omitempty"`
}

// Workflow bundles a task list with its routing. It is the unit exchanged
// with stores and definition files.
type Workflow struct {
	ID      string `json:"id" yaml:"id"`
	Tasks   []Task `json:"tasks" yaml:"tasks"`
	Routing *Graph `json:"routing" yaml:"routing"`
}

// TaskByName returns the first task named name.
func TaskByName(tasks []Task, name string) (*Task, bool) {
	for i := range tasks {
		if tasks[i].Name == name {
			return &tasks[i], true
		}
	}
	return nil, false
}
