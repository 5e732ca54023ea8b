package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/cache/cachetest"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock engine ─────────────────────────────────────────────────────────────

type testEngine struct {
	readyErr error
}

func (e *testEngine) Ready(_ context.Context) error { return e.readyErr }

func failingStore(err error) *storetest.Memory {
	s := storetest.NewMemory()
	s.Fail = func(string) error { return err }
	return s
}

func degradedCache(err error) *cachetest.Memory {
	c := cachetest.NewMemory()
	c.Err = err
	return c
}

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(storetest.NewMemory(), cachetest.NewMemory(), &testEngine{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
	assert.Equal(t, "ok", services["engine"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name     string
		store    pinger
		cache    pinger
		engine   readier
		degraded []string
	}{
		{"database", failingStore(down), cachetest.NewMemory(), &testEngine{}, []string{"database"}},
		{"cache", storetest.NewMemory(), degradedCache(down), &testEngine{}, []string{"cache"}},
		{"engine", storetest.NewMemory(), cachetest.NewMemory(), &testEngine{readyErr: down}, []string{"engine"}},
		{"all", failingStore(down), degradedCache(down), &testEngine{readyErr: down}, []string{"database", "cache", "engine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(tt.store, tt.cache, tt.engine)

			req := httptest.NewRequest("GET", "/api/v1/health", nil)
			w := httptest.NewRecorder()
			h(w, req)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "DEGRADED", errObj["code"])
			details := errObj["details"].(map[string]any)
			for _, name := range tt.degraded {
				assert.Equal(t, "degraded", details[name], name)
			}
		})
	}
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	// Clear all env vars that config.Load() requires
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "ENGINE_URL"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("ENGINE_URL", "http://localhost:8000")
	t.Setenv("RENDER_ENABLED", "false")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
