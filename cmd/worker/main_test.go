package main

import (
	"testing"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/config"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_FromConfig(t *testing.T) {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			MaxRetries:   4,
			RetryDelay:   2 * time.Second,
			PollInterval: 3 * time.Second,
			PollTimeout:  10 * time.Minute,
		},
		Retention: config.RetentionConfig{Period: 48 * time.Hour},
	}

	assert.Equal(t, orchestrator.Settings{
		MaxRetries:   4,
		RetryDelay:   2 * time.Second,
		PollInterval: 3 * time.Second,
		PollTimeout:  10 * time.Minute,
		Retention:    48 * time.Hour,
	}, settings(cfg))
}

func TestRun_FailsOnMissingConfig(t *testing.T) {
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
