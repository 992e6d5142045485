package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/layout"
	"github.com/meikuraledutech/flow/memory"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/session"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, memory otherwise.
	var store flow.Store = memory.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	const wf = "ingest"

	// ── Tasks ─────────────────────────────────────────────────────────
	fetch := &flow.Task{
		Name:      "Fetch",
		ExitCodes: []flow.ExitCode{{Code: 0, Description: "ok"}, {Code: 1, Description: "error"}},
		Params:    []flow.Param{{Name: "url", Type: flow.ParamString, Description: "source URL"}},
	}
	parse := &flow.Task{
		Name:      "Parse",
		ExitCodes: []flow.ExitCode{{Code: 0, Description: "done"}},
	}
	for _, t := range []*flow.Task{fetch, parse} {
		if _, err := store.AddTask(ctx, wf, t); err != nil {
			log.Fatalf("add task: %v", err)
		}
	}

	// ── Routing: incomplete first ─────────────────────────────────────
	g := flow.NewGraph()
	g.SetRoute("Fetch", 0, "Parse")
	g.SetRoute("Parse", 0, flow.End)

	err := flow.SaveRouting(ctx, store, wf, g)
	fmt.Printf("\nsave incomplete routing: %v\n", err)

	g.SetRoute("Fetch", 1, "Fetch")
	tasks, _ := store.ListTasks(ctx, wf)
	fmt.Printf("warnings after fix: %d, lint: %v\n", len(flow.Validate(tasks, g)), flow.Lint(tasks, g))
	if err := flow.SaveRouting(ctx, store, wf, g); err != nil {
		log.Fatalf("save routing: %v", err)
	}
	fmt.Println("routing saved")

	// ── Flowchart ─────────────────────────────────────────────────────
	engine := layout.NewEngine()
	engine.Update(tasks, g)
	for _, n := range engine.Layout().Nodes {
		engine.ReportSize(n.ID, layout.Size{Width: 160, Height: 56})
	}
	fmt.Println("\nflowchart:")
	printJSON(engine.Layout())

	// ── Execute ───────────────────────────────────────────────────────
	run := session.RunnerFunc(func(ctx context.Context, taskID string, inputs map[string]any) (flow.TaskResult, error) {
		return flow.TaskResult{ExitCode: 0, Output: json.RawMessage(`{"bytes": 512}`)}, nil
	})
	notify := session.NotifierFunc(func(msg string, sev session.Severity) {
		fmt.Printf("[%s] %s\n", sev, msg)
	})
	sess := session.New(run, notify, session.StoreTasks{Store: store})

	sess.SelectTask(*fetch)
	sess.SetInput("url", "https://example.com/data.csv")
	if _, err := sess.Execute(ctx); err != nil {
		log.Fatalf("execute: %v", err)
	}
	next, _ := sess.Next(g)
	fmt.Printf("next step after Fetch: %s\n", next)

	fmt.Println("\nsession:")
	printJSON(sess.State())

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteRouting(ctx, wf); err != nil {
		log.Fatalf("delete routing: %v", err)
	}
	for _, t := range tasks {
		if err := store.DeleteTask(ctx, t.ID); err != nil {
			log.Fatalf("delete task: %v", err)
		}
	}
	fmt.Println("\nworkflow deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
