package layout

import "github.com/meikuraledutech/flow"

// EndNodeID is the ID of the synthetic node for flow.End.
const EndNodeID = string(flow.End)

// Point is a position in flowchart coordinates. Y grows downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the rendered size of a node.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EdgeStyle tells the renderer how an edge is routed.
type EdgeStyle string

const (
	StyleDefault    EdgeStyle = "default"
	StyleSelfLoop   EdgeStyle = "selfLoop"
	StyleDoubleBack EdgeStyle = "doubleBack"
)

// Node is a task (or the End marker) placed on the flowchart.
// Position is the top-left corner.
type Node struct {
	ID       string     `json:"id"`
	Task     *flow.Task `json:"task,omitempty"`
	End      bool       `json:"end,omitempty"`
	Rank     int        `json:"rank"`
	Order    int        `json:"order"`
	Position Point      `json:"position"`
	Size     Size       `json:"size"`
	Measured bool       `json:"measured"`
}

// Center returns the centre of the node's box.
func (n *Node) Center() Point {
	return Point{X: n.Position.X + n.Size.Width/2, Y: n.Position.Y + n.Size.Height/2}
}

// Edge is one exit-code route between two nodes.
type Edge struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	ExitCode int       `json:"exit_code"`
	Label    string    `json:"label"`
	Style    EdgeStyle `json:"style"`
	// Lane separates edges that would otherwise overlap: parallel edges
	// between the same pair, or several loops / double-backs on one source.
	Lane    int     `json:"lane"`
	Path    []Point `json:"path"`
	LabelAt Point   `json:"label_at"`
}

// Viewport is the region a renderer should fit into view.
type Viewport struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout is a positioned node/edge set.
type Layout struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Empty reports whether there is nothing to render.
func (l *Layout) Empty() bool {
	return l == nil || len(l.Nodes) == 0
}

// Node returns the node with id.
func (l *Layout) Node(id string) (*Node, bool) {
	for i := range l.Nodes {
		if l.Nodes[i].ID == id {
			return &l.Nodes[i], true
		}
	}
	return nil, false
}

// Edge returns the edge with id.
func (l *Layout) Edge(id string) (*Edge, bool) {
	for i := range l.Edges {
		if l.Edges[i].ID == id {
			return &l.Edges[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of l.
func (l *Layout) Clone() *Layout {
	if l == nil {
		return &Layout{}
	}
	out := &Layout{
		Nodes: append([]Node(nil), l.Nodes...),
		Edges: make([]Edge, len(l.Edges)),
	}
	for i, e := range l.Edges {
		e.Path = append([]Point(nil), e.Path...)
		out.Edges[i] = e
	}
	return out
}
