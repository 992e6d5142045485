package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/internal/config"
	"github.com/meikuraledutech/flow/internal/logger"
	"github.com/meikuraledutech/flow/layout"
	"github.com/meikuraledutech/flow/memory"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/runner"
	"github.com/meikuraledutech/flow/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var errNoRunner = errors.New("no task runner configured")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "flowd",
		Short:        "Task routing, flowchart and execution service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check that every task and exit code of a workflow file is routed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFile(cmd.OutOrStdout(), args[0])
		},
	})

	return root
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(&cfg.Log)
	defer log.Sync()

	var store flow.Store
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
		log.Info("using postgres store")
	} else {
		store = memory.New()
		log.Warn("DATABASE_URL is not set, using in-memory store")
	}

	var run session.Runner = session.RunnerFunc(func(context.Context, string, map[string]any) (flow.TaskResult, error) {
		return flow.TaskResult{}, errNoRunner
	})
	if cfg.Runner.URL != "" {
		run = runner.NewHTTP(cfg.Runner.URL, cfg.Runner.Timeout, log)
	}

	layoutOpts := []layout.Option{
		layout.WithSpacing(cfg.Layout.RankGap, cfg.Layout.NodeGap),
		layout.WithPadding(cfg.Layout.Padding),
		layout.WithLogger(log),
	}

	srv := newServer(store, run, cfg.Session.HistoryLimit, layoutOpts, log)
	log.Info("listening", zap.String("address", cfg.Server.Address))
	return srv.routes().Listen(cfg.Server.Address)
}

// validateFile prints the warnings of a YAML workflow definition and fails
// when the routing would not be saved.
func validateFile(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var wf flow.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	warnings := flow.Validate(wf.Tasks, wf.Routing)
	for _, w := range warnings {
		fmt.Fprintf(out, "error: %s\n", w)
	}
	for _, w := range flow.Lint(wf.Tasks, wf.Routing) {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if len(warnings) > 0 {
		return &flow.ValidationError{Warnings: warnings}
	}
	fmt.Fprintf(out, "%s: routing is valid (%d tasks)\n", path, len(wf.Tasks))
	return nil
}
