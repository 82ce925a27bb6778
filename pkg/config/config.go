package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for sqlpilot-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, database passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// LLM endpoint configuration
	LLM LLMConfig `yaml:"llm"`

	// Datasource being queried
	Datasource DatasourceConfig `yaml:"datasource"`

	// Workflow behavior
	Workflow WorkflowConfig `yaml:"workflow"`

	// MetadataDir is an optional directory of per-table CSV files carrying
	// column descriptions (one file per table, named <table>.csv).
	MetadataDir string `yaml:"metadata_dir" env:"METADATA_DIR" env-default:""`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`

	// Endpoint is the base URL for OpenAI-compatible endpoints.
	// Ignored by the Anthropic provider.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`

	// Model is the completion model name.
	Model string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`

	// EmbeddingModel is used for the semantic column index.
	EmbeddingModel string `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:"text-embedding-3-large"`

	// Temperature for completions.
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`

	// APIKey is the provider API key. Secret - environment only.
	APIKey string `yaml:"-" env:"LLM_API_KEY"`
}

// DatasourceConfig identifies the database the engine answers questions over.
type DatasourceConfig struct {
	// Driver selects the adapter: "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"DATASOURCE_DRIVER" env-default:"sqlite"`

	// DSN is the connection string. For sqlite this is a file path.
	// Secret for postgres (may embed a password) - environment only.
	DSN string `yaml:"-" env:"DATASOURCE_DSN" env-default:"data/app.db"`

	// SampleLimit bounds the number of distinct values sampled per column
	// during value search and statistics collection.
	SampleLimit int `yaml:"sample_limit" env:"DATASOURCE_SAMPLE_LIMIT" env-default:"200"`
}

// WorkflowConfig holds query-resolution workflow settings.
type WorkflowConfig struct {
	// MaxIterations caps SQL generation attempts per question.
	MaxIterations int `yaml:"max_iterations" env:"WORKFLOW_MAX_ITERATIONS" env-default:"3"`

	// HumanInteraction enables confirmation checkpoints after planning
	// and after SQL generation.
	HumanInteraction bool `yaml:"human_interaction" env:"WORKFLOW_HUMAN_INTERACTION" env-default:"false"`

	// MaxNodeVisits is the hard cap on workflow node visits per question,
	// guarding against routing cycles.
	MaxNodeVisits int `yaml:"max_node_visits" env:"WORKFLOW_MAX_NODE_VISITS" env-default:"50"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from environment variables
// and defaults alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Datasource.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown datasource driver %q", c.Datasource.Driver)
	}

	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("workflow max_iterations must be at least 1")
	}
	if c.Workflow.MaxNodeVisits < c.Workflow.MaxIterations {
		return fmt.Errorf("workflow max_node_visits must be at least max_iterations")
	}

	return nil
}
