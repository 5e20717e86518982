package config

// Config represents the main Otto engine configuration.
type Config struct {
	Instance   InstanceConfig   `toml:"instance"`
	Engine     EngineConfig     `toml:"engine"`
	Delegation DelegationConfig `toml:"delegation"`
	Stores     StoresConfig     `toml:"stores"`
	Events     EventsConfig     `toml:"events"`
	Remote     RemoteConfig     `toml:"remote"`
	Model      ModelConfig      `toml:"model"`
	Logging    LoggingConfig    `toml:"logging"`
	Paths      PathsConfig      `toml:"paths"`
}

// InstanceConfig contains instance-level settings.
type InstanceConfig struct {
	ID      string `toml:"id"`
	AgentID string `toml:"agent_id"` // identity the conductor reports as caller
}

// EngineConfig tunes batch dispatch.
type EngineConfig struct {
	// MaxConcurrency bounds goroutines inside one concurrent group.
	// 0 means auto (4 x GOMAXPROCS, clamped to [4, 32]).
	MaxConcurrency int `toml:"max_concurrency"`
}

// DelegationConfig tunes multi-agent delegation.
type DelegationConfig struct {
	// TimeoutSeconds bounds the wait for a child agent's terminal result.
	// One global value for every agent type.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// MaxIterations caps a child agent's model/tool loop.
	MaxIterations int `toml:"max_iterations"`
}

// StoresConfig selects and configures the Todo store backend.
type StoresConfig struct {
	Backend    string      `toml:"backend"` // memory, sqlite, redis
	SQLitePath string      `toml:"sqlite_path"`
	Redis      RedisConfig `toml:"redis"`
}

// RedisConfig configures the shared mission Todo store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// EventsConfig configures event fan-out beyond the in-process bus.
type EventsConfig struct {
	NATS NATSConfig `toml:"nats"`
}

// NATSConfig configures the cross-process event bridge.
type NATSConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// RemoteConfig lists remote-protocol tool servers.
type RemoteConfig struct {
	Servers []RemoteServerConfig `toml:"servers"`
}

// RemoteServerConfig describes one MCP server.
type RemoteServerConfig struct {
	Name string `toml:"name"`
	// Transport accepts "stdio://<command>", "sse://<url>",
	// "http+stream://<url>" or a bare command line.
	Transport string `toml:"transport"`
	Enabled   bool   `toml:"enabled"`
}

// ModelConfig configures the LLM client used by child agents.
type ModelConfig struct {
	Provider  string `toml:"provider"` // anthropic, openai, google, openaicompat
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"` // openaicompat endpoints
	MaxTokens int    `toml:"max_tokens"`

	// Fallback provider tried when the primary is unavailable.
	FallbackProvider string `toml:"fallback_provider"`
	FallbackModel    string `toml:"fallback_model"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level           string `toml:"level"`  // debug, info, warn, error
	Format          string `toml:"format"` // text, json
	ReportTimestamp bool   `toml:"report_timestamp"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	DataDir string `toml:"data_dir"`
	LogsDir string `toml:"logs_dir"`
}
