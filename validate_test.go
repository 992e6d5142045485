package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func fetchParse() []Task {
	return []Task{
		{Name: "Fetch", ExitCodes: []ExitCode{{0, "ok"}, {1, "error"}}},
		{Name: "Parse", ExitCodes: []ExitCode{{0, "done"}}},
	}
}

func TestValidate_FetchParseScenario(t *testing.T) {
	tasks := fetchParse()
	g := NewGraph()
	g.SetRoute("Fetch", 0, "Parse")
	g.SetRoute("Parse", 0, End)

	assert.Equal(t, []Warning{{Kind: UnmappedExitCode, Task: "Fetch", ExitCode: 1}}, Validate(tasks, g))

	g.SetRoute("Fetch", 1, End)
	assert.Empty(t, Validate(tasks, g))
}

func TestWarning_JSONKeepsExitCodeZero(t *testing.T) {
	g := NewGraph()
	g.AddTask("Fetch")
	warnings := Validate(fetchParse()[:1], g)

	b, err := json.Marshal(warnings)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"kind": "unmapped_exit_code", "task": "Fetch", "exit_code": 0},
		{"kind": "unmapped_exit_code", "task": "Fetch", "exit_code": 1}
	]`, string(b))
}

func TestValidate_MissingTaskSkipsCodeChecks(t *testing.T) {
	tasks := fetchParse()
	g := NewGraph()
	g.SetRoute("Fetch", 0, "Parse")
	g.SetRoute("Fetch", 1, End)

	assert.Equal(t, []Warning{{Kind: MissingTaskFromRouting, Task: "Parse"}}, Validate(tasks, g))
}

func TestValidate_OrderFollowsInput(t *testing.T) {
	tasks := []Task{
		{Name: "Z", ExitCodes: []ExitCode{{2, ""}, {0, ""}}},
		{Name: "A"},
		{Name: "M", ExitCodes: []ExitCode{{1, ""}}},
	}
	g := NewGraph()
	g.AddTask("Z")
	g.AddTask("M")

	assert.Equal(t, []Warning{
		{Kind: UnmappedExitCode, Task: "Z", ExitCode: 2},
		{Kind: UnmappedExitCode, Task: "Z", ExitCode: 0},
		{Kind: MissingTaskFromRouting, Task: "A"},
		{Kind: UnmappedExitCode, Task: "M", ExitCode: 1},
	}, Validate(tasks, g))
}

func TestValidate_EmptyRouteMapCountsAsPresent(t *testing.T) {
	tasks := []Task{{Name: "NoCodes"}}
	g := NewGraph()
	g.AddTask("NoCodes")
	assert.Empty(t, Validate(tasks, g))
}

func TestValidate_NilGraph(t *testing.T) {
	warnings := Validate(fetchParse(), nil)
	assert.Equal(t, []Warning{
		{Kind: MissingTaskFromRouting, Task: "Fetch"},
		{Kind: MissingTaskFromRouting, Task: "Parse"},
	}, warnings)
}

func TestValidate_ExtraGraphEntriesIgnored(t *testing.T) {
	tasks := []Task{{Name: "A", ExitCodes: []ExitCode{{0, ""}}}}
	g := NewGraph()
	g.SetRoute("A", 0, End)
	g.SetRoute("A", 7, "Ghost")
	g.SetRoute("Ghost", 0, End)
	assert.Empty(t, Validate(tasks, g))
}

func TestLint(t *testing.T) {
	tasks := []Task{
		{Name: "Loop", Recursive: true, ExitCodes: []ExitCode{{0, ""}}},
		{Name: "Once", ExitCodes: []ExitCode{{0, ""}, {1, ""}, {2, ""}}},
	}
	g := NewGraph()
	g.SetRoute("Loop", 0, "Loop")
	g.SetRoute("Once", 0, "Once")
	g.SetRoute("Once", 1, "Ghost")
	g.SetRoute("Once", 2, End)

	assert.Equal(t, []Warning{
		{Kind: UnexpectedSelfLoop, Task: "Once", ExitCode: 0, Target: "Once"},
		{Kind: UnknownTarget, Task: "Once", ExitCode: 1, Target: "Ghost"},
	}, Lint(tasks, g))
	assert.Empty(t, Validate(tasks, g), "lint findings do not affect validation")
}

func TestValidationError(t *testing.T) {
	err := error(&ValidationError{Warnings: []Warning{
		{Kind: MissingTaskFromRouting, Task: "Parse"},
		{Kind: UnmappedExitCode, Task: "Fetch", ExitCode: 1},
	}})
	assert.True(t, errors.Is(err, ErrInvalidRouting))
	assert.Contains(t, err.Error(), `task "Parse" is missing`)
	assert.Contains(t, err.Error(), `exit code 1 of task "Fetch"`)
}

// genRouting draws a task list with unique names and a routing graph that
// covers an arbitrary subset of tasks and exit codes.
func genRouting(t *rapid.T) ([]Task, *Graph) {
	n := rapid.IntRange(0, 6).Draw(t, "tasks")
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i].Name = fmt.Sprintf("T%d", i)
		codes := rapid.SliceOfNDistinct(rapid.IntRange(0, 9), 0, 4, rapid.ID[int]).Draw(t, "codes")
		for _, c := range codes {
			tasks[i].ExitCodes = append(tasks[i].ExitCodes, ExitCode{Code: c})
		}
	}

	g := NewGraph()
	for _, task := range tasks {
		if !rapid.Bool().Draw(t, "routed") {
			continue
		}
		g.AddTask(task.Name)
		for _, ec := range task.ExitCodes {
			if rapid.Bool().Draw(t, "mapped") {
				g.SetRoute(task.Name, ec.Code, End)
			}
		}
	}
	return tasks, g
}

func TestProperty_ValidatorCompleteness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks, g := genRouting(t)

		type key struct {
			kind WarningKind
			task string
			code int
		}
		want := make(map[key]bool)
		for _, task := range tasks {
			m, ok := g.Route(task.Name)
			if !ok {
				want[key{MissingTaskFromRouting, task.Name, 0}] = true
				continue
			}
			for _, ec := range task.ExitCodes {
				if _, ok := m[ec.Code]; !ok {
					want[key{UnmappedExitCode, task.Name, ec.Code}] = true
				}
			}
		}

		got := Validate(tasks, g)
		if len(got) != len(want) {
			t.Fatalf("got %d warnings, want %d: %v", len(got), len(want), got)
		}
		for _, w := range got {
			if !want[key{w.Kind, w.Task, w.ExitCode}] {
				t.Fatalf("unexpected warning %v", w)
			}
		}
	})
}

func TestProperty_NoWarningsMeansComplete(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks, g := genRouting(t)
		if len(Validate(tasks, g)) != 0 {
			return
		}
		for _, task := range tasks {
			m, ok := g.Route(task.Name)
			if !ok {
				t.Fatalf("task %s missing from a valid routing", task.Name)
			}
			for _, ec := range task.ExitCodes {
				if target, ok := m[ec.Code]; !ok || target == "" {
					t.Fatalf("code %d of %s unmapped in a valid routing", ec.Code, task.Name)
				}
			}
		}
	})
}

func TestProperty_ValidateIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks, g := genRouting(t)
		first := Validate(tasks, g)
		second := Validate(tasks, g.Clone())
		require.Equal(t, first, second)
	})
}
