// Package config loads the controller configuration from the
// environment. Every knob has a default that works for local
// development; the HOVEL_* variables override them in deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full controller configuration.
type Config struct {
	// ListenPort is the control API listen port (HOVEL_PORT).
	ListenPort int

	// AdvertiseHost is the hostname used when building URLs handed back
	// to clients, such as terminal-session addresses (HOVEL_HOST).
	AdvertiseHost string

	// TemplatePath is the root of the workspace template tree
	// (APP_TEMPLATE_PATH).
	TemplatePath string

	// WorkspacesRoot is the parent directory of per-branch workspaces
	// (WORKSPACES_ROOT).
	WorkspacesRoot string

	// BasePort and MaxPort bound the assignable branch port range
	// (BASE_BRANCH_PORT, MAX_BRANCH_PORT).
	BasePort int
	MaxPort  int

	// BuildConcurrency caps the number of concurrent background builds
	// (BUILD_CONCURRENCY).
	BuildConcurrency int

	// BuildTimeout bounds a single image build (BUILD_TIMEOUT_SEC).
	BuildTimeout time.Duration

	// UpTimeout bounds a container-group start (UP_TIMEOUT_SEC).
	UpTimeout time.Duration

	// OpTimeout bounds every other container-engine invocation
	// (OP_TIMEOUT_SEC).
	OpTimeout time.Duration

	// TTYDCommand is the command executed inside the web terminal
	// (TTYD_COMMAND).
	TTYDCommand string

	// RepoPath is the working tree the VCS adapter operates on
	// (REPO_PATH). Defaults to the current directory.
	RepoPath string

	// GeminiBaseURL is the AI provider endpoint used for credential
	// probes (GEMINI_BASE_URL). Overridable for tests.
	GeminiBaseURL string

	// LogLevel and LogJSON control the zerolog setup (LOG_LEVEL,
	// LOG_JSON).
	LogLevel string
	LogJSON  bool
}

// FromEnv builds a Config from the process environment, applying
// defaults for every unset variable.
func FromEnv() *Config {
	return &Config{
		ListenPort:       getEnvInt("HOVEL_PORT", 8000),
		AdvertiseHost:    getEnv("HOVEL_HOST", "localhost"),
		TemplatePath:     getEnv("APP_TEMPLATE_PATH", "/opt/hovel-templates/app-template"),
		WorkspacesRoot:   getEnv("WORKSPACES_ROOT", "./branches"),
		BasePort:         getEnvInt("BASE_BRANCH_PORT", 8001),
		MaxPort:          getEnvInt("MAX_BRANCH_PORT", 8999),
		BuildConcurrency: getEnvInt("BUILD_CONCURRENCY", 4),
		BuildTimeout:     time.Duration(getEnvInt("BUILD_TIMEOUT_SEC", 600)) * time.Second,
		UpTimeout:        time.Duration(getEnvInt("UP_TIMEOUT_SEC", 120)) * time.Second,
		OpTimeout:        time.Duration(getEnvInt("OP_TIMEOUT_SEC", 60)) * time.Second,
		TTYDCommand:      getEnv("TTYD_COMMAND", "gemini"),
		RepoPath:         getEnv("REPO_PATH", "."),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogJSON:          getEnv("LOG_JSON", "false") == "true",
	}
}

// Validate performs startup sanity checks. It does not verify that the
// template path exists — the template may be mounted after the
// controller starts, and the engine reports a clear error at create
// time anyway.
func (c *Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("HOVEL_PORT %d out of range (1-65535)", c.ListenPort)
	}
	if c.BasePort < 1024 || c.BasePort > 65535 {
		return fmt.Errorf("BASE_BRANCH_PORT %d out of range (1024-65535)", c.BasePort)
	}
	if c.MaxPort < c.BasePort {
		return fmt.Errorf("MAX_BRANCH_PORT %d is below BASE_BRANCH_PORT %d", c.MaxPort, c.BasePort)
	}
	// The terminal port is derived by a fixed offset, so the branch
	// range plus offset must still be a valid port.
	if c.MaxPort+1000 > 65535 {
		return fmt.Errorf("MAX_BRANCH_PORT %d leaves no room for terminal ports (max %d)", c.MaxPort, 65535-1000)
	}
	if c.BuildConcurrency < 1 {
		return fmt.Errorf("BUILD_CONCURRENCY must be at least 1, got %d", c.BuildConcurrency)
	}
	if c.WorkspacesRoot == "" {
		return fmt.Errorf("WORKSPACES_ROOT must not be empty")
	}
	return nil
}

// getEnv returns the value of the environment variable, or the default
// when unset or empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the integer value of the environment variable, or
// the default when unset, empty, or unparsable.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
