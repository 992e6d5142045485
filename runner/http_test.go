package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_RunTask(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"exit_code": 1, "output": {"rows": 3}, "logs": ["a", "b"]}`))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL+"/", time.Second, nil)
	res, err := h.RunTask(context.Background(), "task-1", map[string]any{"url": "http://x"})
	require.NoError(t, err)

	assert.Equal(t, "/tasks/task-1/run", gotPath)
	assert.Equal(t, map[string]any{"inputs": map[string]any{"url": "http://x"}}, gotBody)
	assert.Equal(t, 1, res.ExitCode)
	assert.JSONEq(t, `{"rows": 3}`, string(res.Output))
	assert.Equal(t, []string{"a", "b"}, res.Logs)
}

func TestHTTP_RunTask_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second, nil).RunTask(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.ErrorContains(t, err, "404")
}

func TestHTTP_RunTask_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, time.Second, nil).RunTask(context.Background(), "x", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunFailed)
}

func TestHTTP_RunTask_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(url, time.Second, nil).RunTask(context.Background(), "x", nil)
	assert.Error(t, err)
}
