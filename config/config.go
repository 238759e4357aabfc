package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port         string `yaml:"port"`
	SystemPrompt string `yaml:"system_prompt"`
	LogLevel     string `yaml:"log_level"`

	AllowedOrigins []string `yaml:"allowed_origins"` // WebSocket origins; empty allows any
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	JWTAudience string `yaml:"jwt_audience"`
}

type PostgresConfig struct {
	URI string `yaml:"uri"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"` // host:port or redis:// URL; empty disables caching
}

type MongoConfig struct {
	URI    string `yaml:"uri"` // empty disables the chat run log
	DB     string `yaml:"db"`
	RunTTL int    `yaml:"run_ttl_hours"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider"` // vertex|gemini|openai
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	ProjectID string `yaml:"project_id"`
	Location  string `yaml:"location"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // gemini|openai|none
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Store    string `yaml:"store"` // pgvector|memory
}

type ScholarConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheTTLMinutes   int     `yaml:"cache_ttl_minutes"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
}

type ContextConfig struct {
	MaxTokens        int `yaml:"max_tokens"`
	Candidates       int `yaml:"candidates"`
	MaxConversations int `yaml:"max_conversations"`
}

type ResearchConfig struct {
	DefaultPapers int `yaml:"default_papers"`
}

type WorkersConfig struct {
	PersistWorkers     int `yaml:"persist_workers"`
	PersistQueue       int `yaml:"persist_queue"`
	SaveTimeoutSeconds int `yaml:"save_timeout_secs"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Mongo     MongoConfig     `yaml:"mongo"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Scholar   ScholarConfig   `yaml:"scholar"`
	Context   ContextConfig   `yaml:"context"`
	Research  ResearchConfig  `yaml:"research"`
	Workers   WorkersConfig   `yaml:"workers"`
}

const DefaultSystemPrompt = "You are a helpful assistant that can answer questions and help with tasks"

// Load reads path (if it exists), then applies environment overrides and defaults.
// An empty path or a missing file yields a config built from env and defaults only.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func (c *AppConfig) ScholarCacheTTL() time.Duration {
	return time.Duration(c.Scholar.CacheTTLMinutes) * time.Minute
}

func (c *AppConfig) SaveTimeout() time.Duration {
	return time.Duration(c.Workers.SaveTimeoutSeconds) * time.Second
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.SystemPrompt, "SYSTEM_PROMPT")
	setString(&cfg.Server.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, o)
			}
		}
	}

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.Auth.JWTAudience, "JWT_AUDIENCE")

	setString(&cfg.Postgres.URI, "POSTGRES_URI")

	// same precedence the redis initialiser always had
	setString(&cfg.Redis.Addr, "REDIS_URL")
	setString(&cfg.Redis.Addr, "REDIS_URI")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")

	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.DB, "MONGO_DB")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "GOOGLE_GENERATIVE_AI_API_KEY")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.ProjectID, "GCP_PROJECT_ID")
	setString(&cfg.LLM.Location, "GCP_LOCATION")

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Embedding.APIKey, "GOOGLE_GENERATIVE_AI_API_KEY")
	setString(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.Embedding.Store, "VECTOR_STORE")

	setString(&cfg.Scholar.BaseURL, "SEMANTIC_SCHOLAR_BASE_URL")
	setString(&cfg.Scholar.APIKey, "SEMANTIC_SCHOLAR_API_KEY")
	if v := os.Getenv("SEMANTIC_SCHOLAR_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Scholar.RequestsPerSecond = f
		}
	}

	setInt(&cfg.Context.MaxTokens, "CONTEXT_MAX_TOKENS")
	setInt(&cfg.Workers.PersistWorkers, "PERSIST_WORKERS")
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.SystemPrompt == "" {
		cfg.Server.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Mongo.DB == "" {
		cfg.Mongo.DB = "scholarchat"
	}
	if cfg.Mongo.RunTTL <= 0 {
		cfg.Mongo.RunTTL = 24 * 7
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.Model = "gpt-4o-mini"
		default:
			cfg.LLM.Model = "gemini-2.0-flash-001"
		}
	}
	if cfg.LLM.Location == "" {
		cfg.LLM.Location = "us-central1"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		default:
			cfg.Embedding.Model = "text-embedding-004"
		}
	}
	if cfg.Embedding.Store == "" {
		cfg.Embedding.Store = "pgvector"
	}
	if cfg.Scholar.BaseURL == "" {
		cfg.Scholar.BaseURL = "https://api.semanticscholar.org/graph/v1"
	}
	if cfg.Scholar.RequestsPerSecond <= 0 {
		cfg.Scholar.RequestsPerSecond = 1
	}
	if cfg.Scholar.CacheTTLMinutes <= 0 {
		cfg.Scholar.CacheTTLMinutes = 60
	}
	if cfg.Scholar.TimeoutSecs <= 0 {
		cfg.Scholar.TimeoutSecs = 15
	}
	if cfg.Context.MaxTokens <= 0 {
		cfg.Context.MaxTokens = 1500
	}
	if cfg.Context.Candidates <= 0 {
		cfg.Context.Candidates = 5
	}
	if cfg.Context.MaxConversations <= 0 {
		cfg.Context.MaxConversations = 3
	}
	if cfg.Research.DefaultPapers <= 0 {
		cfg.Research.DefaultPapers = 5
	}
	if cfg.Workers.PersistWorkers <= 0 {
		cfg.Workers.PersistWorkers = 2
	}
	if cfg.Workers.PersistQueue <= 0 {
		cfg.Workers.PersistQueue = 64
	}
	if cfg.Workers.SaveTimeoutSeconds <= 0 {
		cfg.Workers.SaveTimeoutSeconds = 30
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
