package layout

import (
	"math"
	"sort"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/meikuraledutech/flow"
)

// Provisional lays out tasks and routing using the placeholder size for
// every node. Only tasks present in the routing, tasks routed to, and the
// End marker (when some route ends) become nodes. An empty routing yields
// an empty layout.
func Provisional(tasks []flow.Task, g *flow.Graph, opts Options) *Layout {
	nodes := collectNodes(tasks, g)
	if len(nodes) == 0 {
		return &Layout{}
	}
	for i := range nodes {
		nodes[i].Size = opts.PlaceholderSize
	}
	rank(nodes, g)
	place(nodes, opts)

	l := &Layout{Nodes: nodes, Edges: buildEdges(nodes, g)}
	routeEdges(l)
	return l
}

// Refine applies measured sizes to l and places every node again. Nodes
// without a measured size keep their current size. l is not modified.
func Refine(l *Layout, sizes map[string]Size, opts Options) *Layout {
	out := l.Clone()
	for i := range out.Nodes {
		n := &out.Nodes[i]
		if s, ok := sizes[n.ID]; ok {
			n.Size = s
			n.Measured = true
		}
	}
	place(out.Nodes, opts)
	routeEdges(out)
	return out
}

// Fit returns the bounding box of all nodes and edge paths, padded.
func Fit(l *Layout, padding float64) Viewport {
	if l.Empty() {
		return Viewport{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	for _, n := range l.Nodes {
		grow(n.Position.X, n.Position.Y)
		grow(n.Position.X+n.Size.Width, n.Position.Y+n.Size.Height)
	}
	for _, e := range l.Edges {
		for _, p := range e.Path {
			grow(p.X, p.Y)
		}
	}
	return Viewport{
		X:      minX - padding,
		Y:      minY - padding,
		Width:  maxX - minX + 2*padding,
		Height: maxY - minY + 2*padding,
	}
}

// collectNodes orders nodes as: routed tasks in task-list order, routed
// names missing from the task list (sorted), dangling targets (sorted), End.
func collectNodes(tasks []flow.Task, g *flow.Graph) []Node {
	if g.Len() == 0 {
		return nil
	}

	var nodes []Node
	seen := make(map[string]bool)
	add := func(n Node) {
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}

	for i := range tasks {
		if _, ok := g.Route(tasks[i].Name); ok {
			t := tasks[i]
			add(Node{ID: t.Name, Task: &t})
		}
	}
	for _, name := range g.Tasks() {
		add(Node{ID: name})
	}

	var dangling []string
	hasEnd := false
	for _, name := range g.Tasks() {
		m, _ := g.Route(name)
		for _, target := range m {
			switch {
			case target.IsEnd():
				hasEnd = true
			case !seen[string(target)]:
				dangling = append(dangling, string(target))
			}
		}
	}
	dangling = slice.Unique(dangling)
	sort.Strings(dangling)
	for _, name := range dangling {
		if t, ok := flow.TaskByName(tasks, name); ok {
			cp := *t
			add(Node{ID: name, Task: &cp})
			continue
		}
		add(Node{ID: name})
	}
	if hasEnd {
		add(Node{ID: EndNodeID, End: true})
	}
	return nodes
}

// rank assigns rows by breadth-first search from entry nodes, i.e. task
// nodes nobody else routes to. Cycles with no entry are seeded from their
// first node in order. End always sits alone on the last row.
func rank(nodes []Node, g *flow.Graph) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	succ := make([][]int, len(nodes))
	hasIncoming := make([]bool, len(nodes))
	for i, n := range nodes {
		m, ok := g.Route(n.ID)
		if !ok {
			continue
		}
		for _, code := range m.Codes() {
			j, ok := index[string(m[code])]
			if !ok || j == i || nodes[j].End {
				continue
			}
			succ[i] = append(succ[i], j)
			hasIncoming[j] = true
		}
	}

	visited := make([]bool, len(nodes))
	order := make(map[int]int)
	maxRank := 0
	var queue []int
	visit := func(i, r int) {
		visited[i] = true
		nodes[i].Rank = r
		nodes[i].Order = order[r]
		order[r]++
		if r > maxRank {
			maxRank = r
		}
		queue = append(queue, i)
	}
	drain := func() {
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, j := range succ[i] {
				if !visited[j] {
					visit(j, nodes[i].Rank+1)
				}
			}
		}
	}

	for i, n := range nodes {
		if !n.End && !hasIncoming[i] {
			visit(i, 0)
		}
	}
	drain()
	for i, n := range nodes {
		if !n.End && !visited[i] {
			visit(i, 0)
			drain()
		}
	}

	for i := range nodes {
		if nodes[i].End {
			nodes[i].Rank = maxRank + 1
			nodes[i].Order = 0
		}
	}
}

// place stacks rows top to bottom and centres each row on x = 0. Nodes in a
// row share a vertical centre.
func place(nodes []Node, opts Options) {
	rows := make(map[int][]int)
	maxRank := 0
	for i, n := range nodes {
		rows[n.Rank] = append(rows[n.Rank], i)
		if n.Rank > maxRank {
			maxRank = n.Rank
		}
	}

	y := 0.0
	for r := 0; r <= maxRank; r++ {
		row := rows[r]
		if len(row) == 0 {
			continue
		}
		sort.Slice(row, func(a, b int) bool { return nodes[row[a]].Order < nodes[row[b]].Order })

		width, height := 0.0, 0.0
		for k, i := range row {
			if k > 0 {
				width += opts.NodeGap
			}
			width += nodes[i].Size.Width
			height = math.Max(height, nodes[i].Size.Height)
		}

		x := -width / 2
		for _, i := range row {
			nodes[i].Position = Point{X: x, Y: y + (height-nodes[i].Size.Height)/2}
			x += nodes[i].Size.Width + opts.NodeGap
		}
		y += height + opts.RankGap
	}
}
