// Package config loads server-wide configuration: connection strings (from
// environment, never committed to disk), default per-project buffer/lock
// tunables, and OpenTelemetry exporter settings.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/acontext-run/runtime/internal/llm"
	"github.com/acontext-run/runtime/pkg/types"
)

// ServerConfig is the process-wide configuration for acontext-server.
type ServerConfig struct {
	// Postgres DSN. Secret; environment-only, never read from a config file.
	PostgresDSN string
	// RedisAddr is the coordination-store endpoint.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MQ connection string, read from ACONTEXT_MQ_BROKER_URL. mq.New does
	// not take it: the bus always uses the in-process gochannel backend,
	// whatever this holds.
	MQBrokerURL string

	// SecretPepper is the server-wide pepper for project secret digests,
	// read from ACONTEXT_SECRET_PEPPER. No code in this repository reads it.
	SecretPepper string

	// SandboxMCPURL is the streamable-HTTP endpoint of the external sandbox
	// MCP server. `serve` does not dial it; sandbox.Dial is the only
	// consumer of such a URL and nothing calls it.
	SandboxMCPURL string

	// HTTPPort is the API listen port.
	HTTPPort int

	// LLM carries the provider credentials/endpoints the llm.Client dials.
	LLM llm.Config
	// DefaultLLMProvider/DefaultLLMModel back a session whose ModelParams
	// leaves provider/model unset.
	DefaultLLMProvider llm.Provider
	DefaultLLMModel    string

	// OTel exporter settings, read from the standard OTEL_* env vars.
	OTel OTelConfig

	// Defaults applied to any ProjectConfig field left at its zero value.
	Defaults types.ProjectConfig
}

// OTelConfig mirrors the standard OpenTelemetry SDK environment variables,
// read explicitly here rather than relying on an auto-configure SDK import
// so the runtime can log what it resolved before OTel code runs.
type OTelConfig struct {
	ServiceName        string
	ExporterOTLPEndpoint string
	ExporterOTLPProtocol string
	ResourceAttributes   string
}

// DefaultProjectConfig holds the fallback buffer/lock/retry thresholds used
// whenever a project's own ProjectConfig leaves a field at zero.
var DefaultProjectConfig = types.ProjectConfig{
	MaxTurns:                    20,
	MaxOverflow:                 5,
	TTLSeconds:                  300,
	SessionLockTTLSeconds:       60,
	LearnLockTTLSeconds:         120,
	SessionMessageFlushMaxRetries: 3,
	SessionLockWaitSeconds:      30,
	EnableSkillLearning:         false,
	LLMIterationDeadlineSeconds: 120,
	TaskAgentMaxIterations:      16,
	SkillAgentMaxIterations:     16,
}

// Load reads a .env file (if present) into the process environment, then
// builds a ServerConfig from environment variables. envPath may be empty to
// skip .env loading entirely (e.g. in production where env is injected by
// the orchestrator).
func Load(envPath string) (*ServerConfig, error) {
	if envPath != "" {
		// Absence of the file is not an error; godotenv only augments
		// variables already set by the environment.
		_ = godotenv.Load(envPath)
	}

	cfg := &ServerConfig{
		PostgresDSN:   os.Getenv("ACONTEXT_POSTGRES_DSN"),
		RedisAddr:     envOr("ACONTEXT_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("ACONTEXT_REDIS_PASSWORD"),
		RedisDB:       envIntOr("ACONTEXT_REDIS_DB", 0),
		MQBrokerURL:   os.Getenv("ACONTEXT_MQ_BROKER_URL"),
		SecretPepper:  os.Getenv("ACONTEXT_SECRET_PEPPER"),
		SandboxMCPURL: os.Getenv("ACONTEXT_SANDBOX_MCP_URL"),
		HTTPPort:      envIntOr("ACONTEXT_HTTP_PORT", 8080),
		LLM: llm.Config{
			ClaudeAPIKey:    os.Getenv("ACONTEXT_CLAUDE_API_KEY"),
			ClaudeBaseURL:   os.Getenv("ACONTEXT_CLAUDE_BASE_URL"),
			OpenAIAPIKey:    os.Getenv("ACONTEXT_OPENAI_API_KEY"),
			OpenAIBaseURL:   os.Getenv("ACONTEXT_OPENAI_BASE_URL"),
			MaxRetries:      envIntOr("ACONTEXT_LLM_MAX_RETRIES", 3),
			InitialBackoff:  time.Duration(envIntOr("ACONTEXT_LLM_INITIAL_BACKOFF_MS", 500)) * time.Millisecond,
			MaxElapsedRetry: time.Duration(envIntOr("ACONTEXT_LLM_MAX_ELAPSED_RETRY_SECONDS", 30)) * time.Second,
		},
		DefaultLLMProvider: llm.Provider(envOr("ACONTEXT_DEFAULT_LLM_PROVIDER", string(llm.ProviderClaude))),
		DefaultLLMModel:    envOr("ACONTEXT_DEFAULT_LLM_MODEL", "claude-sonnet-4-20250514"),
		OTel: OTelConfig{
			ServiceName:          envOr("OTEL_SERVICE_NAME", "acontext-runtime"),
			ExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ExporterOTLPProtocol: envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			ResourceAttributes:   os.Getenv("OTEL_RESOURCE_ATTRIBUTES"),
		},
		Defaults: DefaultProjectConfig,
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ResolveProjectConfig overlays a project's explicit overrides onto the
// server defaults, field by field.
func ResolveProjectConfig(defaults, override types.ProjectConfig) types.ProjectConfig {
	resolved := defaults
	if override.MaxTurns != 0 {
		resolved.MaxTurns = override.MaxTurns
	}
	if override.MaxOverflow != 0 {
		resolved.MaxOverflow = override.MaxOverflow
	}
	if override.TTLSeconds != 0 {
		resolved.TTLSeconds = override.TTLSeconds
	}
	if override.SessionLockTTLSeconds != 0 {
		resolved.SessionLockTTLSeconds = override.SessionLockTTLSeconds
	}
	if override.LearnLockTTLSeconds != 0 {
		resolved.LearnLockTTLSeconds = override.LearnLockTTLSeconds
	}
	if override.SessionMessageFlushMaxRetries != 0 {
		resolved.SessionMessageFlushMaxRetries = override.SessionMessageFlushMaxRetries
	}
	if override.SessionLockWaitSeconds != 0 {
		resolved.SessionLockWaitSeconds = override.SessionLockWaitSeconds
	}
	resolved.EnableSkillLearning = override.EnableSkillLearning
	if override.LLMIterationDeadlineSeconds != 0 {
		resolved.LLMIterationDeadlineSeconds = override.LLMIterationDeadlineSeconds
	}
	if override.TaskAgentMaxIterations != 0 {
		resolved.TaskAgentMaxIterations = override.TaskAgentMaxIterations
	}
	if override.SkillAgentMaxIterations != 0 {
		resolved.SkillAgentMaxIterations = override.SkillAgentMaxIterations
	}
	return resolved
}

// stripJSONComments removes // and /* */ comments from a JSONC document,
// kept from the teacher's project-config loader for the one remaining JSONC
// consumer: project-level ProjectConfig overrides uploaded as jsonc.
func stripJSONComments(data []byte) []byte {
	singleLine := regexp.MustCompile(`//.*$`)
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLine.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))

	multiLine := regexp.MustCompile(`/\*[\s\S]*?\*/`)
	return multiLine.ReplaceAll(data, nil)
}

// ParseProjectConfigJSONC decodes a jsonc-encoded ProjectConfig override
// payload (used by the project-config admin surface).
func ParseProjectConfigJSONC(data []byte) (types.ProjectConfig, error) {
	var cfg types.ProjectConfig
	if err := json.Unmarshal(stripJSONComments(data), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
