package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/config"
	"hypolab/internal/db"
	"hypolab/internal/store"
)

func TestResolveConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := ResolveConfig(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 0.0.0.0:9000\n"), 0o644))
	cfg, err = ResolveConfig(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/api", cfg.Server.BasePath)
}

func TestBuildWithoutJournal(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Seed = &off
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Empty(t, a.Store.ListHypotheses(store.HypothesisFilter{}))
	assert.Len(t, a.Store.ListStages(), 7)
	assert.Nil(t, a.Webhooks)

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildWithJournalAndWebhooks(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Enabled = true
	cfg.Journal.Workspace = t.TempDir()
	cfg.Webhooks = []config.WebhookConfig{{URL: "http://127.0.0.1:1/hook"}}
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NotEmpty(t, a.Store.ListHypotheses(store.HypothesisFilter{}))
	assert.NotNil(t, a.Webhooks)
	assert.FileExists(t, db.Path(cfg.Journal.Workspace))

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.BasePath = "api"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
