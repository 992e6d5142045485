// Package runner provides task-execution backends for sessions.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/meikuraledutech/flow"
	"go.uber.org/zap"
)

var ErrRunFailed = errors.New("runner: task run failed")

// HTTP runs tasks by POSTing {"inputs": ...} to {BaseURL}/tasks/{id}/run
// and decoding a flow.TaskResult from the response.
type HTTP struct {
	baseURL string
	cc      *client.Client
	log     *zap.Logger
}

// NewHTTP creates a runner for the execution service at baseURL.
func NewHTTP(baseURL string, timeout time.Duration, log *zap.Logger) *HTTP {
	if log == nil {
		log = zap.NewNop()
	}
	cc := client.New()
	if timeout > 0 {
		cc.SetTimeout(timeout)
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		cc:      cc,
		log:     log.Named("runner"),
	}
}

type runRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// RunTask implements session.Runner.
func (h *HTTP) RunTask(ctx context.Context, taskID string, inputs map[string]any) (flow.TaskResult, error) {
	endpoint := fmt.Sprintf("%s/tasks/%s/run", h.baseURL, url.PathEscape(taskID))

	resp, err := h.cc.R().
		SetContext(ctx).
		SetJSON(runRequest{Inputs: inputs}).
		Post(endpoint)
	if err != nil {
		return flow.TaskResult{}, fmt.Errorf("runner: post %s: %w", endpoint, err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		h.log.Warn("run rejected",
			zap.String("task_id", taskID),
			zap.Int("status", code),
			zap.ByteString("body", resp.Body()),
		)
		return flow.TaskResult{}, fmt.Errorf("%w: status %d", ErrRunFailed, code)
	}

	var result flow.TaskResult
	if err := resp.JSON(&result); err != nil {
		return flow.TaskResult{}, fmt.Errorf("runner: decode result: %w", err)
	}
	return result, nil
}
