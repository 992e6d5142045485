package main

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/session"
	"go.uber.org/zap"
)

const maxNotifications = 20

type notification struct {
	Message  string           `json:"message"`
	Severity session.Severity `json:"severity"`
	Time     time.Time        `json:"time"`
}

// inbox keeps the latest notifications of one session and logs them.
type inbox struct {
	log *zap.Logger

	mu    sync.Mutex
	items []notification
}

func (b *inbox) Notify(message string, severity session.Severity) {
	b.log.Info("notify", zap.String("severity", string(severity)), zap.String("message", message))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]notification{{Message: message, Severity: severity, Time: time.Now()}}, b.items...)
	if len(b.items) > maxNotifications {
		b.items = b.items[:maxNotifications]
	}
}

func (b *inbox) list() []notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]notification{}, b.items...)
}

type sessionEntry struct {
	workflowID string
	tasks      session.StoreTasks
	sess       *session.Session
	inbox      *inbox
}

type sessionRegistry struct {
	store  flow.Store
	runner session.Runner
	limit  int
	log    *zap.Logger

	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func newSessionRegistry(store flow.Store, runner session.Runner, limit int, log *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		store:   store,
		runner:  runner,
		limit:   limit,
		log:     log,
		entries: make(map[string]*sessionEntry),
	}
}

func (r *sessionRegistry) create(workflowID string) string {
	id := uuid.NewString()
	log := r.log.With(zap.String("session_id", id))
	box := &inbox{log: log}
	tasks := session.StoreTasks{Store: r.store, WorkflowID: workflowID}
	entry := &sessionEntry{
		workflowID: workflowID,
		tasks:      tasks,
		inbox:      box,
		sess: session.New(r.runner, box, tasks,
			session.WithHistoryLimit(r.limit),
			session.WithLogger(log),
		),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry
	return id
}

func (r *sessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

type sessionResponse struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"`
	Notifications []notification `json:"notifications"`
	session.State
}

func sessionOf(id string, e *sessionEntry) sessionResponse {
	return sessionResponse{
		ID:            id,
		WorkflowID:    e.workflowID,
		Notifications: e.inbox.list(),
		State:         e.sess.State(),
	}
}

// withSession resolves :id or answers 404.
type sessionHandler func(c fiber.Ctx, id string, e *sessionEntry) error

func (s *server) withSession(fn sessionHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		e, ok := s.sessions.get(id)
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "session not found"})
		}
		return fn(c, id, e)
	}
}

func (s *server) createSession(c fiber.Ctx) error {
	var body struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.WorkflowID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	id := s.sessions.create(body.WorkflowID)
	return c.Status(201).JSON(fiber.Map{"id": id})
}

func (s *server) getSession(c fiber.Ctx, id string, e *sessionEntry) error {
	return c.JSON(sessionOf(id, e))
}

func (s *server) deleteSession(c fiber.Ctx) error {
	s.sessions.remove(c.Params("id"))
	return c.SendStatus(204)
}

func (s *server) resetSession(c fiber.Ctx, id string, e *sessionEntry) error {
	e.sess.Reset()
	return c.JSON(sessionOf(id, e))
}

func (s *server) selectTask(c fiber.Ctx, id string, e *sessionEntry) error {
	var body struct {
		TaskID string `json:"task_id"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.TaskID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	t, err := e.tasks.TaskByID(c.Context(), body.TaskID)
	if err != nil {
		return internalError(c, err)
	}
	if t == nil {
		return c.Status(404).JSON(fiber.Map{"error": "task not found"})
	}
	e.sess.SelectTask(*t)
	return c.JSON(sessionOf(id, e))
}

func (s *server) setInputs(c fiber.Ctx, id string, e *sessionEntry) error {
	var values map[string]any
	if err := c.Bind().JSON(&values); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	e.sess.SetAllInputs(values)
	return c.JSON(sessionOf(id, e))
}

func (s *server) setInput(c fiber.Ctx, id string, e *sessionEntry) error {
	var body struct {
		Value any `json:"value"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	e.sess.SetInput(c.Params("key"), body.Value)
	return c.JSON(sessionOf(id, e))
}

func (s *server) execute(c fiber.Ctx, id string, e *sessionEntry) error {
	exec, err := e.sess.Execute(c.Context())
	switch {
	case errors.Is(err, session.ErrNoTaskSelected):
		return c.Status(400).JSON(fiber.Map{"error": "no task selected"})
	case errors.Is(err, session.ErrBusy):
		return c.Status(409).JSON(fiber.Map{"error": "execution in progress"})
	case errors.Is(err, session.ErrExecutionFailed):
		return c.Status(502).JSON(fiber.Map{"error": "execution failed"})
	case err != nil:
		return internalError(c, err)
	}
	return c.JSON(exec)
}

func (s *server) rerun(c fiber.Ctx, id string, e *sessionEntry) error {
	var body struct {
		ExecutionID string `json:"execution_id"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.ExecutionID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	exec, ok := e.sess.Execution(body.ExecutionID)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "execution not found"})
	}
	if err := e.sess.Rerun(c.Context(), exec); err != nil {
		return internalError(c, err)
	}
	return c.JSON(sessionOf(id, e))
}

func (s *server) next(c fiber.Ctx, id string, e *sessionEntry) error {
	g, err := s.store.GetRouting(c.Context(), e.workflowID)
	if err != nil {
		return internalError(c, err)
	}
	target, ok := e.sess.Next(g)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "no next step"})
	}
	return c.JSON(fiber.Map{"target": target, "end": target.IsEnd()})
}
