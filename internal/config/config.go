// Package config handles Otto engine configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/otto-ai/otto/internal/errors"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".otto")

	return &Config{
		Instance: InstanceConfig{
			ID:      "otto-local",
			AgentID: "otto-main",
		},
		Engine: EngineConfig{
			MaxConcurrency: 0,
		},
		Delegation: DelegationConfig{
			TimeoutSeconds: 600,
			MaxIterations:  12,
		},
		Stores: StoresConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(dataDir, "todos.db"),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				DB:   0,
			},
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://localhost:4222",
				SubjectPrefix: "otto",
			},
		},
		Model: ModelConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens: 8192,
		},
		Logging: LoggingConfig{
			Level:           "info",
			Format:          "text",
			ReportTimestamp: true,
		},
		Paths: PathsConfig{
			DataDir: dataDir,
			LogsDir: filepath.Join(dataDir, "logs"),
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, errors.CodeConfigNotFound, "cannot read config", errors.CategorySystem)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "cannot parse config", errors.CategoryUser)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// Validate checks enumerated fields and bounds.
func (c *Config) Validate() error {
	switch c.Stores.Backend {
	case "memory", "sqlite", "redis":
	default:
		return errors.Validation("stores.backend", "unknown backend "+c.Stores.Backend,
			"memory", "sqlite", "redis")
	}

	switch c.Model.Provider {
	case "anthropic", "openai", "google", "openaicompat":
	default:
		return errors.Validation("model.provider", "unknown provider "+c.Model.Provider,
			"anthropic", "openai", "google", "openaicompat")
	}

	if c.Delegation.TimeoutSeconds <= 0 {
		return errors.Validation("delegation.timeout_seconds", "must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Validation("logging.level", "unknown level "+c.Logging.Level,
			"debug", "info", "warn", "error")
	}

	return nil
}

// DelegationTimeout returns the child agent wait bound.
func (c *Config) DelegationTimeout() time.Duration {
	return time.Duration(c.Delegation.TimeoutSeconds) * time.Second
}

// Concurrency returns the effective per-group goroutine bound.
func (c *Config) Concurrency() int {
	if c.Engine.MaxConcurrency > 0 {
		return c.Engine.MaxConcurrency
	}

	n := runtime.GOMAXPROCS(0) * 4
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}

// EnabledServers filters the remote server list to enabled entries.
func (c *Config) EnabledServers() []RemoteServerConfig {
	var out []RemoteServerConfig
	for _, s := range c.Remote.Servers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// expandPaths expands a leading ~ in configured paths.
func expandPaths(cfg *Config) {
	cfg.Paths.DataDir = expandHome(cfg.Paths.DataDir)
	cfg.Paths.LogsDir = expandHome(cfg.Paths.LogsDir)
	cfg.Stores.SQLitePath = expandHome(cfg.Stores.SQLitePath)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
