// Package config loads and validates the runtime configuration from the
// environment, with a .env file picked up when present.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hupe1980/sidekick/tool"
)

// Config is the full runtime configuration with documented defaults.
type Config struct {
	// Models
	WorkerModel    string
	EvaluatorModel string

	// Timeouts for external REST dependencies
	RequestTimeout         time.Duration
	PushoverRequestTimeout time.Duration
	SerperRequestTimeout   time.Duration

	// External API endpoints and credentials
	PushoverAPIURL string
	SerperAPIURL   string
	PushoverToken  string
	PushoverUser   string
	SerperAPIKey   string

	// Feature toggles and limits
	EnableShellTool bool
	MaxTurns        int
	SandboxDir      string
	BrowserHeadless bool

	// Retry policy for LLM invocations
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Server
	Port int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, layering a .env file under
// real environment variables, and validates the result.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		WorkerModel:    getString("WORKER_LLM_MODEL", "gpt-4o-mini"),
		EvaluatorModel: getString("EVALUATOR_LLM_MODEL", "gpt-4o-mini"),

		RequestTimeout:         getDuration("REQUEST_TIMEOUT", 10*time.Second),
		PushoverRequestTimeout: getDuration("PUSHOVER_REQUEST_TIMEOUT", 5*time.Second),
		SerperRequestTimeout:   getDuration("SERPER_REQUEST_TIMEOUT", 15*time.Second),

		PushoverAPIURL: getString("PUSHOVER_API_URL", tool.DefaultPushoverURL),
		SerperAPIURL:   getString("SERPER_API_URL", tool.DefaultSerperURL),
		PushoverToken:  getString("PUSHOVER_TOKEN", ""),
		PushoverUser:   getString("PUSHOVER_USER", ""),
		SerperAPIKey:   getString("SERPER_API_KEY", ""),

		EnableShellTool: getBool("ENABLE_SHELL_TOOL", false),
		MaxTurns:        getInt("MAX_TURNS", 20),
		SandboxDir:      getString("SANDBOX_DIR", "sandbox"),
		BrowserHeadless: getBool("BROWSER_HEADLESS", true),

		RetryMaxAttempts:  getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDuration("RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:     getDuration("RETRY_MAX_DELAY", 60*time.Second),

		Port: getInt("PORT", 8080),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would only fail later at
// an awkward moment.
func (c *Config) Validate() error {
	timeouts := map[string]time.Duration{
		"REQUEST_TIMEOUT":          c.RequestTimeout,
		"PUSHOVER_REQUEST_TIMEOUT": c.PushoverRequestTimeout,
		"SERPER_REQUEST_TIMEOUT":   c.SerperRequestTimeout,
		"RETRY_INITIAL_DELAY":      c.RetryInitialDelay,
		"RETRY_MAX_DELAY":          c.RetryMaxDelay,
	}
	for name, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, value)
		}
	}

	if strings.TrimSpace(c.WorkerModel) == "" {
		return fmt.Errorf("config: WORKER_LLM_MODEL must not be empty")
	}
	if strings.TrimSpace(c.EvaluatorModel) == "" {
		return fmt.Errorf("config: EVALUATOR_LLM_MODEL must not be empty")
	}

	endpoints := map[string]string{
		"PUSHOVER_API_URL": c.PushoverAPIURL,
		"SERPER_API_URL":   c.SerperAPIURL,
	}
	for name, endpoint := range endpoints {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: %s must be a valid http(s) URL, got %q", name, endpoint)
		}
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("config: MAX_TURNS must not be negative, got %d", c.MaxTurns)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be in 1..65535, got %d", c.Port)
	}

	return nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getDuration accepts Go duration strings ("10s", "1m") and, for
// compatibility, bare numbers interpreted as seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
