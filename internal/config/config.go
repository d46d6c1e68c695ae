// Package config loads the agent engine's service configuration using a
// layered koanf pipeline, mirroring the teacher repo's
// pkg/config/koanf_loader.go shape (Loader wrapping a *koanf.Koanf plus a
// parser), trimmed to the two providers this service needs: a YAML file
// and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "AGENTENGINE_"

// Config is the fully-resolved, typed configuration for the service.
type Config struct {
	HTTPAddr string `koanf:"http_addr"`

	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	Kafka    KafkaConfig    `koanf:"kafka"`

	LLM LLMConfig `koanf:"llm"`

	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	TurnLimit TurnLimitConfig `koanf:"turn_limit"`
}

type PostgresConfig struct {
	DSN         string `koanf:"dsn"`
	MaxOpenConn int    `koanf:"max_open_conn"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type LLMConfig struct {
	OpenAIAPIKey  string `koanf:"openai_api_key"`
	OpenAIBaseURL string `koanf:"openai_base_url"`
	GroqAPIKey    string `koanf:"groq_api_key"`
	GroqBaseURL   string `koanf:"groq_base_url"`

	// EmbeddingModel backs internal/llm.OpenAIEmbedder; planning calls
	// (orchestrator, validation, query expansion, reranking, summarization)
	// are never business-configurable, unlike the customer-facing model
	// selected per business via agent_configs.model.
	EmbeddingModel      string `koanf:"embedding_model"`
	OrchestratorModel   string `koanf:"orchestrator_model"`
	ValidatorModel      string `koanf:"validator_model"`
	QueryExpansionModel string `koanf:"query_expansion_model"`
	RerankModel         string `koanf:"rerank_model"`
	SummarizationModel  string `koanf:"summarization_model"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

type TracingConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

type TurnLimitConfig struct {
	DeadlineSeconds int `koanf:"deadline_seconds"`
}

func (c TurnLimitConfig) Deadline() time.Duration {
	if c.DeadlineSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// Loader mirrors the teacher's config.Loader: a koanf instance plus the
// parser used to decode the file layer.
type Loader struct {
	koanf  *koanf.Koanf
	path   string
	parser *yaml.YAML
}

// NewLoader creates a Loader for the YAML file at path. Path is required.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	return &Loader{
		koanf:  koanf.New("."),
		path:   path,
		parser: yaml.Parser(),
	}, nil
}

// Load reads the YAML file, then overlays AGENTENGINE_-prefixed
// environment variables, then decodes into a Config.
func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(file.Provider(l.path), l.parser); err != nil {
		return nil, fmt.Errorf("config: load file %s: %w", l.path, err)
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	})
	if err := l.koanf.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	var cfg Config
	if err := l.koanf.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Postgres.MaxOpenConn <= 0 {
		cfg.Postgres.MaxOpenConn = 10
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "agent_engine"
	}
	if cfg.TurnLimit.DeadlineSeconds <= 0 {
		cfg.TurnLimit.DeadlineSeconds = 60
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "agent-engine.execution-events"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.OrchestratorModel == "" {
		cfg.LLM.OrchestratorModel = "gpt-4o-mini"
	}
	if cfg.LLM.ValidatorModel == "" {
		cfg.LLM.ValidatorModel = "gpt-4o-mini"
	}
	if cfg.LLM.QueryExpansionModel == "" {
		cfg.LLM.QueryExpansionModel = "gpt-4o-mini"
	}
	if cfg.LLM.RerankModel == "" {
		cfg.LLM.RerankModel = "gpt-4o-mini"
	}
	if cfg.LLM.SummarizationModel == "" {
		cfg.LLM.SummarizationModel = "gpt-4o-mini"
	}
}
