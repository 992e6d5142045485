package layout

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/meikuraledutech/flow"
	"go.uber.org/zap"
)

var ErrUnknownNode = errors.New("layout: unknown node")

// Engine keeps the flowchart of one routing in sync with its renderer.
//
// Update rebuilds the layout only when the routing or task list changes
// structurally. Renderers then report node sizes; once every node has
// reported (or the debounce window has passed, or Flush is called) the
// layout is refined exactly once. Move records a user drag: it changes one
// node and never triggers automatic layout or a viewport refit.
type Engine struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	signature string
	built     bool
	layout    *Layout
	viewport  Viewport
	sizes     map[string]Size
	dragged   map[string]Point
	refined   bool
	timer     *time.Timer
	gen       uint64
}

// NewEngine creates an engine with no layout.
func NewEngine(opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		opts:    o,
		log:     o.Logger.Named("layout"),
		layout:  &Layout{},
		sizes:   make(map[string]Size),
		dragged: make(map[string]Point),
	}
}

// Update lays out tasks and g when their structural signature differs from
// the last call. It reports whether a rebuild happened.
func (e *Engine) Update(tasks []flow.Task, g *flow.Graph) bool {
	sig := Signature(tasks, g)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.built && sig == e.signature {
		return false
	}
	e.stopTimerLocked()
	e.gen++
	e.built = true
	e.signature = sig
	e.layout = Provisional(tasks, g, e.opts)
	e.sizes = make(map[string]Size)
	e.dragged = make(map[string]Point)
	e.refined = e.layout.Empty()
	e.viewport = Fit(e.layout, e.opts.Padding)

	e.log.Debug("rebuilt flowchart",
		zap.Int("nodes", len(e.layout.Nodes)),
		zap.Int("edges", len(e.layout.Edges)),
	)
	return true
}

// ReportSize records the measured size of node id. It reports whether this
// report completed the set and triggered the refine pass. Sizes reported
// after the refine update the node and its edges in place.
func (e *Engine) ReportSize(id string, s Size) (bool, error) {
	e.mu.Lock()

	n, ok := e.layout.Node(id)
	if !ok {
		e.mu.Unlock()
		return false, ErrUnknownNode
	}
	if e.refined {
		n.Size = s
		n.Measured = true
		routeEdges(e.layout)
		e.mu.Unlock()
		return false, nil
	}

	e.sizes[id] = s
	if len(e.sizes) < len(e.layout.Nodes) {
		if e.opts.Debounce > 0 && e.timer == nil {
			gen := e.gen
			e.timer = time.AfterFunc(e.opts.Debounce, func() { e.debounced(gen) })
		}
		e.mu.Unlock()
		return false, nil
	}

	snapshot := e.refineLocked()
	e.mu.Unlock()
	e.notify(snapshot)
	return true, nil
}

// Flush refines with the sizes known so far if no refine has happened since
// the last rebuild. It reports whether a refine ran.
func (e *Engine) Flush() bool {
	e.mu.Lock()
	if e.refined {
		e.mu.Unlock()
		return false
	}
	snapshot := e.refineLocked()
	e.mu.Unlock()
	e.notify(snapshot)
	return true
}

// Move sets the position of node id, as when the user drags it. Edges are
// rerouted against the new position; no other node moves and the viewport
// is kept. The position survives a refine pass that runs later.
func (e *Engine) Move(id string, p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.layout.Node(id)
	if !ok {
		return ErrUnknownNode
	}
	n.Position = p
	e.dragged[id] = p
	routeEdges(e.layout)
	return nil
}

// Layout returns a copy of the current layout.
func (e *Engine) Layout() *Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout.Clone()
}

// Viewport returns the region last fitted on rebuild or refine.
func (e *Engine) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// Refined reports whether the current layout has had its refine pass.
func (e *Engine) Refined() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refined
}

// Close stops a pending debounce timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

func (e *Engine) debounced(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.refined {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.log.Debug("refine after debounce",
		zap.Int("measured", len(e.sizes)),
		zap.Int("nodes", len(e.layout.Nodes)),
	)
	snapshot := e.refineLocked()
	e.mu.Unlock()
	e.notify(snapshot)
}

func (e *Engine) refineLocked() *Layout {
	e.stopTimerLocked()
	e.layout = Refine(e.layout, e.sizes, e.opts)
	if len(e.dragged) > 0 {
		for id, p := range e.dragged {
			if n, ok := e.layout.Node(id); ok {
				n.Position = p
			}
		}
		routeEdges(e.layout)
	}
	e.refined = true
	e.viewport = Fit(e.layout, e.opts.Padding)
	if e.opts.OnRefine == nil {
		return nil
	}
	return e.layout.Clone()
}

func (e *Engine) notify(l *Layout) {
	if l != nil && e.opts.OnRefine != nil {
		e.opts.OnRefine(l)
	}
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Signature identifies the structure of a flowchart: the routing plus the
// task names and exit codes it is drawn from. Positions play no part.
func Signature(tasks []flow.Task, g *flow.Graph) string {
	type taskSig struct {
		Name      string          `json:"n"`
		ExitCodes []flow.ExitCode `json:"c"`
		Recursive bool            `json:"r,omitempty"`
	}
	sigs := make([]taskSig, len(tasks))
	for i, t := range tasks {
		sigs[i] = taskSig{Name: t.Name, ExitCodes: t.ExitCodes, Recursive: t.Recursive}
	}
	b, _ := json.Marshal(sigs)
	return g.Signature() + "|" + string(b)
}
