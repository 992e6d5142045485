package flow

import (
	"fmt"
	"strings"
)

// WarningKind classifies a routing finding.
type WarningKind string

const (
	// MissingTaskFromRouting: the task has no RouteMap at all.
	MissingTaskFromRouting WarningKind = "missing_task_from_routing"
	// UnmappedExitCode: the task is routed but one declared code is not.
	UnmappedExitCode WarningKind = "unmapped_exit_code"

	// Lint-only kinds. They never block a save.
	UnknownTarget      WarningKind = "unknown_target"
	UnexpectedSelfLoop WarningKind = "unexpected_self_loop"
)

// Warning is a non-fatal routing finding.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Task     string      `json:"task"`
	ExitCode int         `json:"exit_code"`
	Target   Target      `json:"target,omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case MissingTaskFromRouting:
		return fmt.Sprintf("task %q is missing from the routing", w.Task)
	case UnmappedExitCode:
		return fmt.Sprintf("exit code %d of task %q is not mapped", w.ExitCode, w.Task)
	case UnknownTarget:
		return fmt.Sprintf("exit code %d of task %q routes to unknown task %q", w.ExitCode, w.Task, w.Target)
	case UnexpectedSelfLoop:
		return fmt.Sprintf("exit code %d of task %q routes to itself but the task is not recursive", w.ExitCode, w.Task)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Task)
}

// Validate reports every task missing from g and every declared exit code
// left unmapped. Tasks are visited in input order and exit codes in declared
// order, so the result is stable. A nil graph is treated as empty.
func Validate(tasks []Task, g *Graph) []Warning {
	var warnings []Warning
	for _, t := range tasks {
		m, ok := g.Route(t.Name)
		if !ok {
			warnings = append(warnings, Warning{Kind: MissingTaskFromRouting, Task: t.Name})
			continue
		}
		for _, ec := range t.ExitCodes {
			if _, ok := m[ec.Code]; !ok {
				warnings = append(warnings, Warning{Kind: UnmappedExitCode, Task: t.Name, ExitCode: ec.Code})
			}
		}
	}
	return warnings
}

// Lint reports advisory findings: routes to tasks outside the task list and
// self routes on tasks that are not recursive. Routed tasks are visited in
// input order, codes ascending.
func Lint(tasks []Task, g *Graph) []Warning {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.Name] = true
	}

	var warnings []Warning
	for _, t := range tasks {
		m, ok := g.Route(t.Name)
		if !ok {
			continue
		}
		for _, code := range m.Codes() {
			target := m[code]
			switch {
			case target.IsEnd():
			case string(target) == t.Name:
				if !t.Recursive {
					warnings = append(warnings, Warning{Kind: UnexpectedSelfLoop, Task: t.Name, ExitCode: code, Target: target})
				}
			case !known[string(target)]:
				warnings = append(warnings, Warning{Kind: UnknownTarget, Task: t.Name, ExitCode: code, Target: target})
			}
		}
	}
	return warnings
}

// ValidationError is returned when an invalid routing is about to be saved.
type ValidationError struct {
	Warnings []Warning
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		parts[i] = w.String()
	}
	return fmt.Sprintf("flow: invalid routing: %s", strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrInvalidRouting) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRouting
}
