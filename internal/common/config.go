package common

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level application configuration, loaded with priority
// default -> file -> environment variable overrides.
type Config struct {
	Environment string           `toml:"environment" validate:"required"`
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Extraction  ExtractionConfig `toml:"extraction" validate:"required"`
	Repository  RepositoryConfig `toml:"repository" validate:"required"`
	LLM         LLMConfig        `toml:"llm" validate:"required"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Jobs        JobsConfig       `toml:"jobs" validate:"required"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// ExtractionConfig carries the four tunable thresholds named in spec §6's
// "Environment" paragraph.
type ExtractionConfig struct {
	PerItemBudgetSeconds float64 `toml:"per_item_budget_s" validate:"required,gt=0"`
	Accept               float64 `toml:"accept" validate:"required,gt=0,lte=1"`
	HeuristicFailure     float64 `toml:"heuristic_failure" validate:"required,gt=0,lte=1"`
	Slack                float64 `toml:"slack" validate:"required,gte=1"`
}

// RepositoryConfig points at the filesystem content-addressed knowledge
// store (spec §6's "Parser repository on-disk layout").
type RepositoryConfig struct {
	Root                string `toml:"root" validate:"required"`
	QuarantineRetention  string `toml:"quarantine_retention"`
	StaleJobThreshold    string `toml:"stale_job_threshold"`
}

// LLMProvider is the AI backend selector, matching model-prefix detection
// in internal/llmclient.
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"required"`
}

type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"`
}

// JobsConfig configures the async job runner's worker pool and the
// maintenance janitor's cron schedule.
type JobsConfig struct {
	WorkerConcurrency int    `toml:"worker_concurrency" validate:"required,gt=0"`
	MaintenanceCron   string `toml:"maintenance_cron"`
}

// NewDefaultConfig returns a configuration matching spec §6's named
// defaults: PER_ITEM_BUDGET_S=10, ACCEPT=0.80, HEURISTIC_FAILURE=0.50,
// SLACK=1.5.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Extraction: ExtractionConfig{
			PerItemBudgetSeconds: 10,
			Accept:               0.80,
			HeuristicFailure:     0.50,
			Slack:                1.5,
		},
		Repository: RepositoryConfig{
			Root:                "./data/repository",
			QuarantineRetention: "168h",
			StaleJobThreshold:   "30m",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-3-flash-preview",
			Timeout:   "5m",
			RateLimit: "4s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-haiku-4-5",
			Timeout:   "5m",
			RateLimit: "1s",
		},
		Jobs: JobsConfig{
			WorkerConcurrency: 4,
			MaintenanceCron:   "0 * * * *",
		},
	}
}

// LoadFromFile loads configuration with priority default -> file -> env.
// path may be empty, in which case only defaults and env overrides apply.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides layers environment variables over file/default config.
// Environment always wins, matching the teacher's override priority.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EXTRACTIONENGINE_ENV"); env != "" {
		config.Environment = env
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("EXTRACTIONENGINE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if root := os.Getenv("EXTRACTIONENGINE_REPOSITORY_ROOT"); root != "" {
		config.Repository.Root = root
	}
	if level := os.Getenv("EXTRACTIONENGINE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
