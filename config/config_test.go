package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.WorkerModel)
	assert.Equal(t, "gpt-4o-mini", cfg.EvaluatorModel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.PushoverRequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.SerperRequestTimeout)
	assert.Equal(t, 20, cfg.MaxTurns)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryInitialDelay)
	assert.Equal(t, 60*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, "sandbox", cfg.SandboxDir)
	assert.True(t, cfg.BrowserHeadless)
	assert.False(t, cfg.EnableShellTool)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_LLM_MODEL", "gpt-4o")
	t.Setenv("EVALUATOR_LLM_MODEL", "claude-3-5-sonnet-20241022")
	t.Setenv("MAX_TURNS", "5")
	t.Setenv("ENABLE_SHELL_TOOL", "true")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.WorkerModel)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.EvaluatorModel)
	assert.Equal(t, 5, cfg.MaxTurns)
	assert.True(t, cfg.EnableShellTool)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInitialDelay)
	assert.False(t, cfg.BrowserHeadless)
}

func TestLoadAcceptsBareSecondsForTimeouts(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.RequestTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "REQUEST_TIMEOUT")

	cfg = base()
	cfg.WorkerModel = "   "
	assert.ErrorContains(t, cfg.Validate(), "WORKER_LLM_MODEL")

	cfg = base()
	cfg.EvaluatorModel = ""
	assert.ErrorContains(t, cfg.Validate(), "EVALUATOR_LLM_MODEL")

	cfg = base()
	cfg.PushoverAPIURL = "not-a-url"
	assert.ErrorContains(t, cfg.Validate(), "PUSHOVER_API_URL")

	cfg = base()
	cfg.SerperAPIURL = "ftp://example.com"
	assert.ErrorContains(t, cfg.Validate(), "SERPER_API_URL")

	cfg = base()
	cfg.RetryMaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate(), "RETRY_MAX_ATTEMPTS")

	cfg = base()
	cfg.MaxTurns = -1
	assert.ErrorContains(t, cfg.Validate(), "MAX_TURNS")

	cfg = base()
	cfg.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "PORT")
}
