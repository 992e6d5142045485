package main

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/layout"
)

// chartRegistry keeps one layout engine per workflow so measured sizes and
// drags survive between requests.
type chartRegistry struct {
	opts []layout.Option

	mu      sync.Mutex
	engines map[string]*layout.Engine
}

func newChartRegistry(opts []layout.Option) *chartRegistry {
	return &chartRegistry{opts: opts, engines: make(map[string]*layout.Engine)}
}

func (r *chartRegistry) engine(workflowID string) *layout.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[workflowID]
	if !ok {
		e = layout.NewEngine(r.opts...)
		r.engines[workflowID] = e
	}
	return e
}

func (r *chartRegistry) lookup(workflowID string) (*layout.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[workflowID]
	return e, ok
}

type chartResponse struct {
	Nodes    []layout.Node   `json:"nodes"`
	Edges    []layout.Edge   `json:"edges"`
	Viewport layout.Viewport `json:"viewport"`
	Refined  bool            `json:"refined"`
	Rebuilt  bool            `json:"rebuilt"`
}

func chartOf(e *layout.Engine, rebuilt bool) chartResponse {
	l := e.Layout()
	nodes, edges := l.Nodes, l.Edges
	if nodes == nil {
		nodes = []layout.Node{}
	}
	if edges == nil {
		edges = []layout.Edge{}
	}
	return chartResponse{
		Nodes:    nodes,
		Edges:    edges,
		Viewport: e.Viewport(),
		Refined:  e.Refined(),
		Rebuilt:  rebuilt,
	}
}

// getFlowchart lays out the stored routing.
func (s *server) getFlowchart(c fiber.Ctx) error {
	wf, err := flow.LoadWorkflow(c.Context(), s.store, c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	e := s.charts.engine(wf.ID)
	rebuilt := e.Update(wf.Tasks, wf.Routing)
	return c.JSON(chartOf(e, rebuilt))
}

// draftFlowchart lays out an unsaved routing sent by the builder.
func (s *server) draftFlowchart(c fiber.Ctx) error {
	g := flow.NewGraph()
	if err := c.Bind().JSON(g); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	tasks, err := s.store.ListTasks(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	e := s.charts.engine(c.Params("id"))
	rebuilt := e.Update(tasks, g)
	return c.JSON(chartOf(e, rebuilt))
}

func (s *server) reportSizes(c fiber.Ctx) error {
	e, ok := s.charts.lookup(c.Params("id"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "flowchart not found"})
	}
	var sizes map[string]layout.Size
	if err := c.Bind().JSON(&sizes); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	for id, size := range sizes {
		if _, err := e.ReportSize(id, size); errors.Is(err, layout.ErrUnknownNode) {
			return c.Status(404).JSON(fiber.Map{"error": "node not found", "node": id})
		}
	}
	return c.JSON(chartOf(e, false))
}

func (s *server) flushFlowchart(c fiber.Ctx) error {
	e, ok := s.charts.lookup(c.Params("id"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "flowchart not found"})
	}
	e.Flush()
	return c.JSON(chartOf(e, false))
}

func (s *server) moveNode(c fiber.Ctx) error {
	e, ok := s.charts.lookup(c.Params("id"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "flowchart not found"})
	}
	var p layout.Point
	if err := c.Bind().JSON(&p); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := e.Move(c.Params("node"), p); errors.Is(err, layout.ErrUnknownNode) {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	return c.JSON(chartOf(e, false))
}
