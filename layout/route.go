package layout

import (
	"fmt"
	"math"
	"strconv"

	"github.com/meikuraledutech/flow"
)

// buildEdges emits one edge per route, sources in node order and exit codes
// ascending. Style, lanes and paths are filled in by routeEdges.
func buildEdges(nodes []Node, g *flow.Graph) []Edge {
	var edges []Edge
	for i := range nodes {
		n := &nodes[i]
		m, ok := g.Route(n.ID)
		if !ok {
			continue
		}
		for _, code := range m.Codes() {
			target := string(m[code])
			edges = append(edges, Edge{
				ID:       fmt.Sprintf("%s-%d-%s", n.ID, code, target),
				Source:   n.ID,
				Target:   target,
				ExitCode: code,
				Label:    edgeLabel(n.Task, code),
			})
		}
	}
	return edges
}

func edgeLabel(t *flow.Task, code int) string {
	if t != nil {
		if desc, ok := t.ExitCodeDescription(code); ok && desc != "" {
			return fmt.Sprintf("%d: %s", code, desc)
		}
	}
	return strconv.Itoa(code)
}

// Classify returns the style of an edge from source to target given their
// current positions.
func Classify(source, target *Node) EdgeStyle {
	switch {
	case source.ID == target.ID:
		return StyleSelfLoop
	case target.Center().Y < source.Center().Y:
		return StyleDoubleBack
	default:
		return StyleDefault
	}
}

// routeEdges classifies every edge of l against the current node positions,
// assigns lanes and computes paths. Node positions are not touched.
func routeEdges(l *Layout) {
	index := make(map[string]*Node, len(l.Nodes))
	for i := range l.Nodes {
		index[l.Nodes[i].ID] = &l.Nodes[i]
	}

	type pair struct{ source, target string }
	parallel := make(map[pair]int)
	loops := make(map[string]int)
	backs := make(map[string]int)
	for i := range l.Edges {
		e := &l.Edges[i]
		src, dst := index[e.Source], index[e.Target]
		if src == nil || dst == nil {
			continue
		}
		e.Style = Classify(src, dst)
		if e.Style == StyleDefault {
			parallel[pair{e.Source, e.Target}]++
		}
	}

	seen := make(map[pair]int)
	for i := range l.Edges {
		e := &l.Edges[i]
		src, dst := index[e.Source], index[e.Target]
		if src == nil || dst == nil {
			continue
		}
		switch e.Style {
		case StyleSelfLoop:
			e.Lane = loops[e.Source]
			loops[e.Source]++
			e.Path, e.LabelAt = selfLoopPath(src, e.Lane)
		case StyleDoubleBack:
			e.Lane = backs[e.Source]
			backs[e.Source]++
			e.Path, e.LabelAt = doubleBackPath(src, dst, e.Lane, rightExtent(l.Nodes, dst.Rank, src.Rank))
		default:
			p := pair{e.Source, e.Target}
			e.Lane = seen[p]
			seen[p]++
			e.Path, e.LabelAt = defaultPath(src, dst, e.Lane, parallel[p])
		}
	}
}

// defaultPath runs from the source's bottom edge to the target's top edge,
// or side to side when both sit on the same row. Parallel edges are spread
// evenly along the node edges.
func defaultPath(src, dst *Node, lane, lanes int) ([]Point, Point) {
	frac := float64(lane+1) / float64(lanes+1)

	var start, end Point
	if sameRow(src, dst) {
		sy := src.Position.Y + src.Size.Height*frac
		ty := dst.Position.Y + dst.Size.Height*frac
		if dst.Position.X >= src.Position.X {
			start = Point{X: src.Position.X + src.Size.Width, Y: sy}
			end = Point{X: dst.Position.X, Y: ty}
		} else {
			start = Point{X: src.Position.X, Y: sy}
			end = Point{X: dst.Position.X + dst.Size.Width, Y: ty}
		}
	} else {
		start = Point{X: src.Position.X + src.Size.Width*frac, Y: src.Position.Y + src.Size.Height}
		end = Point{X: dst.Position.X + dst.Size.Width*frac, Y: dst.Position.Y}
	}
	return []Point{start, end}, midpoint(start, end)
}

// selfLoopPath draws a rectangular loop off the node's right edge. The loop
// grows with the node and with the lane so several loops stay apart.
func selfLoopPath(n *Node, lane int) ([]Point, Point) {
	r := math.Min(n.Size.Width, n.Size.Height) / 3
	reach := r * (1 + 0.5*float64(lane))
	cy := n.Position.Y + n.Size.Height/2
	right := n.Position.X + n.Size.Width

	path := []Point{
		{X: right, Y: cy - r/2},
		{X: right + reach, Y: cy - r/2},
		{X: right + reach, Y: cy + r/2},
		{X: right, Y: cy + r/2},
	}
	return path, Point{X: right + reach, Y: cy}
}

// doubleBackPath leaves the source on its right, runs out past every node
// on the rows it spans, climbs to the target and enters it from the right.
// The outward offset scales with the wider of the two nodes.
func doubleBackPath(src, dst *Node, lane int, extent float64) ([]Point, Point) {
	offset := math.Max(src.Size.Width, dst.Size.Width) / 4 * (1 + 0.5*float64(lane))
	out := math.Max(extent, math.Max(src.Position.X+src.Size.Width, dst.Position.X+dst.Size.Width)) + offset

	sy := src.Position.Y + src.Size.Height/2
	ty := dst.Position.Y + dst.Size.Height/2
	path := []Point{
		{X: src.Position.X + src.Size.Width, Y: sy},
		{X: out, Y: sy},
		{X: out, Y: ty},
		{X: dst.Position.X + dst.Size.Width, Y: ty},
	}
	return path, Point{X: out, Y: (sy + ty) / 2}
}

// rightExtent is the rightmost node edge on rows lo..hi inclusive.
func rightExtent(nodes []Node, lo, hi int) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	extent := math.Inf(-1)
	for i := range nodes {
		n := &nodes[i]
		if n.Rank >= lo && n.Rank <= hi {
			extent = math.Max(extent, n.Position.X+n.Size.Width)
		}
	}
	return extent
}

func sameRow(a, b *Node) bool {
	return a.Center().Y == b.Center().Y
}

func midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
