package flow

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/duke-git/lancet/v2/maputil"
	"gopkg.in/yaml.v3"
)

// Target is the next step after a task exits: another task's name or End.
type Target string

// End terminates the workflow. "End" is therefore not usable as a task name.
const End Target = "End"

// IsEnd reports whether t is the End marker.
func (t Target) IsEnd() bool { return t == End }

// RouteMap maps a task's exit codes to the step that follows.
type RouteMap map[int]Target

// Codes returns the mapped exit codes in ascending order.
func (m RouteMap) Codes() []int {
	codes := maputil.Keys(m)
	sort.Ints(codes)
	return codes
}

// Graph holds one RouteMap per task name. The graph may contain cycles.
// It is a plain data structure: no validation on write and no locking.
// The zero value is an empty graph ready to use.
type Graph struct {
	routes map[string]RouteMap
}

// NewGraph returns an empty routing graph.
func NewGraph() *Graph {
	return &Graph{routes: make(map[string]RouteMap)}
}

// AddTask registers task with an empty RouteMap unless it is already present.
func (g *Graph) AddTask(task string) {
	if g.routes == nil {
		g.routes = make(map[string]RouteMap)
	}
	if _, ok := g.routes[task]; !ok {
		g.routes[task] = RouteMap{}
	}
}

// SetRoute maps exit code of task to target, creating the task's RouteMap
// when absent. Codes are not checked against the task's declaration.
func (g *Graph) SetRoute(task string, code int, target Target) {
	g.AddTask(task)
	g.routes[task][code] = target
}

// Route returns the RouteMap of task. The map is owned by the graph.
func (g *Graph) Route(task string) (RouteMap, bool) {
	if g == nil {
		return nil, false
	}
	m, ok := g.routes[task]
	return m, ok
}

// Next returns the step that follows task exiting with code.
func (g *Graph) Next(task string, code int) (Target, bool) {
	m, ok := g.Route(task)
	if !ok {
		return "", false
	}
	t, ok := m[code]
	return t, ok
}

// RemoveTask deletes the RouteMap of task. Routes of other tasks that point
// at it are left in place.
func (g *Graph) RemoveTask(task string) {
	delete(g.routes, task)
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.routes)
}

// Tasks returns the task names in the graph, sorted.
func (g *Graph) Tasks() []string {
	if g == nil {
		return nil
	}
	names := maputil.Keys(g.routes)
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	if g == nil {
		return out
	}
	for name, m := range g.routes {
		cp := make(RouteMap, len(m))
		for c, t := range m {
			cp[c] = t
		}
		out.routes[name] = cp
	}
	return out
}

// Signature is a deterministic serialization of the graph. Two graphs with
// the same routes have the same signature regardless of insertion order.
func (g *Graph) Signature() string {
	b, err := json.Marshal(g)
	if err != nil {
		// map[string]map[int]string always marshals.
		panic(fmt.Sprintf("flow: marshal routing: %v", err))
	}
	return string(b)
}

// MarshalJSON encodes the graph as {"Task": {"0": "Next"}}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	if g == nil || g.routes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(g.routes)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var routes map[string]RouteMap
	if err := json.Unmarshal(data, &routes); err != nil {
		return fmt.Errorf("flow: decode routing: %w", err)
	}
	g.routes = normalize(routes)
	return nil
}

// MarshalYAML encodes the graph the same way as MarshalJSON.
func (g *Graph) MarshalYAML() (any, error) {
	if g == nil || g.routes == nil {
		return map[string]RouteMap{}, nil
	}
	return g.routes, nil
}

// UnmarshalYAML decodes a mapping of task name to exit code mapping.
func (g *Graph) UnmarshalYAML(value *yaml.Node) error {
	var routes map[string]RouteMap
	if err := value.Decode(&routes); err != nil {
		return fmt.Errorf("flow: decode routing: %w", err)
	}
	g.routes = normalize(routes)
	return nil
}

func normalize(routes map[string]RouteMap) map[string]RouteMap {
	if routes == nil {
		return make(map[string]RouteMap)
	}
	for name, m := range routes {
		if m == nil {
			routes[name] = RouteMap{}
		}
	}
	return routes
}
