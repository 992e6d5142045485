package main

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/layout"
	"github.com/meikuraledutech/flow/session"
	"go.uber.org/zap"
)

// server holds the collaborators shared by all handlers.
type server struct {
	store    flow.Store
	sessions *sessionRegistry
	charts   *chartRegistry
	log      *zap.Logger
}

func newServer(store flow.Store, runner session.Runner, historyLimit int, layoutOpts []layout.Option, log *zap.Logger) *server {
	return &server{
		store:    store,
		sessions: newSessionRegistry(store, runner, historyLimit, log),
		charts:   newChartRegistry(layoutOpts),
		log:      log,
	}
}

func (s *server) routes() *fiber.App {
	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", s.createSchema)
	app.Delete("/schema", s.dropSchema)

	// ── Tasks ─────────────────────────────────────────────────────────
	app.Post("/workflows/:id/tasks", s.addTask)
	app.Get("/workflows/:id/tasks", s.listTasks)
	app.Get("/tasks/:id", s.getTask)
	app.Put("/tasks/:id", s.updateTask)
	app.Delete("/tasks/:id", s.deleteTask)

	// ── Routing ───────────────────────────────────────────────────────
	app.Get("/workflows/:id/routing", s.getRouting)
	app.Put("/workflows/:id/routing", s.saveRouting)
	app.Delete("/workflows/:id/routing", s.deleteRouting)
	app.Post("/workflows/:id/routing/validate", s.validateRouting)

	// ── Flowchart ─────────────────────────────────────────────────────
	app.Get("/workflows/:id/flowchart", s.getFlowchart)
	app.Post("/workflows/:id/flowchart", s.draftFlowchart)
	app.Post("/workflows/:id/flowchart/sizes", s.reportSizes)
	app.Post("/workflows/:id/flowchart/flush", s.flushFlowchart)
	app.Put("/workflows/:id/flowchart/nodes/:node", s.moveNode)

	// ── Sessions ──────────────────────────────────────────────────────
	app.Post("/sessions", s.createSession)
	app.Get("/sessions/:id", s.withSession(s.getSession))
	app.Delete("/sessions/:id", s.deleteSession)
	app.Post("/sessions/:id/reset", s.withSession(s.resetSession))
	app.Post("/sessions/:id/select", s.withSession(s.selectTask))
	app.Put("/sessions/:id/inputs", s.withSession(s.setInputs))
	app.Patch("/sessions/:id/inputs/:key", s.withSession(s.setInput))
	app.Post("/sessions/:id/execute", s.withSession(s.execute))
	app.Post("/sessions/:id/rerun", s.withSession(s.rerun))
	app.Get("/sessions/:id/next", s.withSession(s.next))

	return app
}

func internalError(c fiber.Ctx, err error) error {
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}

func (s *server) createSchema(c fiber.Ctx) error {
	if err := s.store.CreateSchema(c.Context()); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (s *server) dropSchema(c fiber.Ctx) error {
	if err := s.store.DropSchema(c.Context()); err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

// ── Tasks ─────────────────────────────────────────────────────────────

func (s *server) addTask(c fiber.Ctx) error {
	var task flow.Task
	if err := c.Bind().JSON(&task); err != nil || task.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if flow.Target(task.Name).IsEnd() {
		return c.Status(400).JSON(fiber.Map{"error": "task name is reserved"})
	}
	id, err := s.store.AddTask(c.Context(), c.Params("id"), &task)
	if errors.Is(err, flow.ErrDuplicateTask) {
		return c.Status(409).JSON(fiber.Map{"error": "duplicate task name"})
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"id": id})
}

func (s *server) listTasks(c fiber.Ctx) error {
	tasks, err := s.store.ListTasks(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(tasks)
}

func (s *server) getTask(c fiber.Ctx) error {
	t, err := s.store.GetTask(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	if t == nil {
		return c.Status(404).JSON(fiber.Map{"error": "task not found"})
	}
	return c.JSON(t)
}

func (s *server) updateTask(c fiber.Ctx) error {
	var task flow.Task
	if err := c.Bind().JSON(&task); err != nil || task.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if flow.Target(task.Name).IsEnd() {
		return c.Status(400).JSON(fiber.Map{"error": "task name is reserved"})
	}
	task.ID = c.Params("id")
	err := s.store.UpdateTask(c.Context(), &task)
	if errors.Is(err, flow.ErrTaskNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "task not found"})
	}
	if errors.Is(err, flow.ErrDuplicateTask) {
		return c.Status(409).JSON(fiber.Map{"error": "duplicate task name"})
	}
	if err != nil {
		return internalError(c, err)
	}
	return c.SendStatus(204)
}

func (s *server) deleteTask(c fiber.Ctx) error {
	if err := s.store.DeleteTask(c.Context(), c.Params("id")); err != nil {
		return internalError(c, err)
	}
	return c.SendStatus(204)
}

// ── Routing ───────────────────────────────────────────────────────────

func (s *server) getRouting(c fiber.Ctx) error {
	g, err := s.store.GetRouting(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	if g == nil {
		return c.Status(404).JSON(fiber.Map{"error": "routing not found"})
	}
	return c.JSON(g)
}

func (s *server) saveRouting(c fiber.Ctx) error {
	g := flow.NewGraph()
	if err := c.Bind().JSON(g); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	err := flow.SaveRouting(c.Context(), s.store, c.Params("id"), g)
	var verr *flow.ValidationError
	if errors.As(err, &verr) {
		return c.Status(422).JSON(fiber.Map{"error": "invalid routing", "warnings": verr.Warnings})
	}
	if err != nil {
		return internalError(c, err)
	}
	s.log.Info("routing saved", zap.String("workflow_id", c.Params("id")), zap.Int("tasks", g.Len()))
	return c.SendStatus(204)
}

func (s *server) deleteRouting(c fiber.Ctx) error {
	if err := s.store.DeleteRouting(c.Context(), c.Params("id")); err != nil {
		return internalError(c, err)
	}
	return c.SendStatus(204)
}

func (s *server) validateRouting(c fiber.Ctx) error {
	g := flow.NewGraph()
	if err := c.Bind().JSON(g); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	tasks, err := s.store.ListTasks(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}
	warnings := flow.Validate(tasks, g)
	return c.JSON(fiber.Map{
		"valid":    len(warnings) == 0,
		"warnings": nonNil(warnings),
		"lint":     nonNil(flow.Lint(tasks, g)),
	})
}

func nonNil(w []flow.Warning) []flow.Warning {
	if w == nil {
		return []flow.Warning{}
	}
	return w
}
