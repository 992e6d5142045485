package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGraph_SetRouteCreatesRouteMap(t *testing.T) {
	g := NewGraph()
	_, ok := g.Route("Fetch")
	assert.False(t, ok)

	g.SetRoute("Fetch", 0, "Parse")
	m, ok := g.Route("Fetch")
	require.True(t, ok)
	assert.Equal(t, RouteMap{0: "Parse"}, m)

	// upsert
	g.SetRoute("Fetch", 0, End)
	m, _ = g.Route("Fetch")
	assert.Equal(t, End, m[0])
}

func TestGraph_ZeroValueUsable(t *testing.T) {
	var g Graph
	g.SetRoute("A", 3, "B")
	next, ok := g.Next("A", 3)
	require.True(t, ok)
	assert.Equal(t, Target("B"), next)
}

func TestGraph_SetRouteAcceptsUndeclaredCodes(t *testing.T) {
	g := NewGraph()
	g.SetRoute("A", 99, "Nowhere")
	next, ok := g.Next("A", 99)
	require.True(t, ok)
	assert.Equal(t, Target("Nowhere"), next)
}

func TestGraph_RemoveTaskDoesNotCascade(t *testing.T) {
	g := NewGraph()
	g.SetRoute("A", 0, "B")
	g.SetRoute("B", 0, End)

	g.RemoveTask("B")

	_, ok := g.Route("B")
	assert.False(t, ok)
	next, ok := g.Next("A", 0)
	require.True(t, ok)
	assert.Equal(t, Target("B"), next, "dangling reference is kept")
}

func TestGraph_AddTaskKeepsExistingRoutes(t *testing.T) {
	g := NewGraph()
	g.SetRoute("A", 0, End)
	g.AddTask("A")
	g.AddTask("B")

	m, _ := g.Route("A")
	assert.Len(t, m, 1)
	m, ok := g.Route("B")
	require.True(t, ok)
	assert.Empty(t, m)
	assert.Equal(t, []string{"A", "B"}, g.Tasks())
}

func TestGraph_NilIsEmpty(t *testing.T) {
	var g *Graph
	_, ok := g.Route("A")
	assert.False(t, ok)
	assert.Zero(t, g.Len())
	assert.Nil(t, g.Tasks())
	assert.Equal(t, 0, g.Clone().Len())
}

func TestGraph_CloneIsDeep(t *testing.T) {
	g := NewGraph()
	g.SetRoute("A", 0, "B")

	cp := g.Clone()
	cp.SetRoute("A", 0, End)
	cp.SetRoute("C", 0, End)

	next, _ := g.Next("A", 0)
	assert.Equal(t, Target("B"), next)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_SignatureIgnoresInsertionOrder(t *testing.T) {
	a := NewGraph()
	a.SetRoute("A", 1, End)
	a.SetRoute("A", 0, "B")
	a.SetRoute("B", 0, End)

	b := NewGraph()
	b.SetRoute("B", 0, End)
	b.SetRoute("A", 0, "B")
	b.SetRoute("A", 1, End)

	assert.Equal(t, a.Signature(), b.Signature())

	b.SetRoute("B", 1, "A")
	assert.NotEqual(t, a.Signature(), b.Signature())
}

func TestGraph_JSON(t *testing.T) {
	g := NewGraph()
	g.SetRoute("Fetch", 0, "Parse")
	g.SetRoute("Fetch", 1, End)
	g.AddTask("Parse")

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fetch": {"0": "Parse", "1": "End"}, "Parse": {}}`, string(data))

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Signature(), back.Signature())
}

func TestGraph_UnmarshalNullRouteMap(t *testing.T) {
	var g Graph
	require.NoError(t, json.Unmarshal([]byte(`{"A": null}`), &g))
	m, ok := g.Route("A")
	require.True(t, ok)
	assert.NotNil(t, m)
}

func TestGraph_UnmarshalRejectsBadCodes(t *testing.T) {
	var g Graph
	assert.Error(t, json.Unmarshal([]byte(`{"A": {"zero": "B"}}`), &g))
}

func TestGraph_YAML(t *testing.T) {
	src := `
Fetch:
  0: Parse
  1: End
Parse:
  0: End
`
	var g Graph
	require.NoError(t, yaml.Unmarshal([]byte(src), &g))

	next, ok := g.Next("Fetch", 1)
	require.True(t, ok)
	assert.True(t, next.IsEnd())

	out, err := yaml.Marshal(&g)
	require.NoError(t, err)
	var back Graph
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, g.Signature(), back.Signature())
}

func TestRouteMap_Codes(t *testing.T) {
	m := RouteMap{2: End, 0: "A", 1: "B"}
	assert.Equal(t, []int{0, 1, 2}, m.Codes())
}
