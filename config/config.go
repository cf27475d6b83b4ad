package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/upb/helpdesk-orchestrator/internal/escalation"
	"github.com/upb/helpdesk-orchestrator/internal/textvec"
)

const (
	// DefaultConfigPath is read when APP_CONFIG_PATH is unset and the file exists
	DefaultConfigPath = "config/helpdesk-config.yaml"

	DefaultSystemPrompt = "You are a helpful customer service assistant. " +
		"Provide clear, concise, and professional responses. " +
		"If you cannot answer a question based on the available information, " +
		"politely suggest that the user should contact support for further assistance."

	KnowledgeSourceFile     = "file"
	KnowledgeSourcePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Similarity    SimilarityConfig
	Escalation    escalation.Config
	Model         ModelConfig
	Retry         RetryConfig
	Knowledge     KnowledgeConfig
	Audit         AuditConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// SimilarityConfig controls knowledge base matching
type SimilarityConfig struct {
	Threshold       float64
	Weighting       textvec.Weighting
	AlwaysCallModel bool
}

// ModelConfig holds the generative backend settings
type ModelConfig struct {
	EndpointURL      string
	Model            string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	APIKey           string
	SystemPrompt     string
	IncludeKBContext bool

	// Optional hosted OpenAI provider, used for gpt-* models
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// RetryConfig bounds retries of retryable backend failures
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Budget      time.Duration
}

// KnowledgeConfig selects where the knowledge base is loaded from
type KnowledgeConfig struct {
	Source string
	Path   string
}

// AuditConfig controls the interaction audit trail
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	Workers    int
	// RedactPII masks emails, phone numbers, card numbers and IPs before
	// interactions are stored
	RedactPII bool
}

// AuthConfig enables bearer token authentication when JWTSecret is set
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	AdminRole string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// fileConfig mirrors the YAML layout of helpdesk-config.yaml
type fileConfig struct {
	Similarity struct {
		Threshold     *float64 `yaml:"threshold"`
		Algorithm     string   `yaml:"algorithm"`
		Weighting     string   `yaml:"weighting"`
		AlwaysCallLLM *bool    `yaml:"always_call_llm"`
	} `yaml:"similarity"`
	Ollama struct {
		EndpointURL string   `yaml:"endpoint_url"`
		Model       string   `yaml:"model"`
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   *int     `yaml:"max_tokens"`
		Timeout     *int     `yaml:"timeout"` // seconds
	} `yaml:"ollama"`
	Prompts struct {
		SystemPrompt       string   `yaml:"system_prompt"`
		EscalationPhrases  []string `yaml:"escalation_phrases"`
		LowConfidenceFloor *float64 `yaml:"low_confidence_floor"`
	} `yaml:"prompts"`
	Knowledge struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
	} `yaml:"knowledge"`
}

// New creates a new Config instance: defaults, then the optional YAML file,
// then environment variables.
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaults()

	path := os.Getenv("APP_CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	// the default file is optional, an explicit one is not
	if err := cfg.applyFile(path); err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Similarity: SimilarityConfig{
			Threshold: 0.7,
			Weighting: textvec.WeightingTF,
		},
		Escalation: escalation.Config{
			Phrases: append([]string(nil), escalation.DefaultPhrases...),
		},
		Model: ModelConfig{
			EndpointURL:      "http://localhost:11434",
			Model:            "llama2",
			Temperature:      0.1,
			MaxTokens:        500,
			Timeout:          30 * time.Second,
			SystemPrompt:     DefaultSystemPrompt,
			IncludeKBContext: true,
			OpenAIBaseURL:    "https://api.openai.com/v1",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			Backoff:     200 * time.Millisecond,
		},
		Knowledge: KnowledgeConfig{
			Source: KnowledgeSourceFile,
			Path:   "config/knowledge-base.json",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1000,
			Workers:    2,
			RedactPII:  true,
		},
		Auth: AuthConfig{
			AdminRole: "support-admin",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
	cfg.Server.TLS.CertFile = "certs/cert.pem"
	cfg.Server.TLS.KeyFile = "certs/key.pem"
	return cfg
}

// applyFile overlays the YAML file at path
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.Similarity.Threshold != nil {
		c.Similarity.Threshold = *fc.Similarity.Threshold
	}
	if fc.Similarity.Algorithm != "" && !strings.EqualFold(fc.Similarity.Algorithm, "cosine") {
		return fmt.Errorf("unsupported similarity algorithm %q", fc.Similarity.Algorithm)
	}
	if fc.Similarity.Weighting != "" {
		w, err := textvec.ParseWeighting(fc.Similarity.Weighting)
		if err != nil {
			return err
		}
		c.Similarity.Weighting = w
	}
	if fc.Similarity.AlwaysCallLLM != nil {
		c.Similarity.AlwaysCallModel = *fc.Similarity.AlwaysCallLLM
	}

	if fc.Ollama.EndpointURL != "" {
		c.Model.EndpointURL = fc.Ollama.EndpointURL
	}
	if fc.Ollama.Model != "" {
		c.Model.Model = fc.Ollama.Model
	}
	if fc.Ollama.Temperature != nil {
		c.Model.Temperature = *fc.Ollama.Temperature
	}
	if fc.Ollama.MaxTokens != nil {
		c.Model.MaxTokens = *fc.Ollama.MaxTokens
	}
	if fc.Ollama.Timeout != nil {
		c.Model.Timeout = time.Duration(*fc.Ollama.Timeout) * time.Second
	}

	if fc.Prompts.SystemPrompt != "" {
		c.Model.SystemPrompt = fc.Prompts.SystemPrompt
	}
	if fc.Prompts.EscalationPhrases != nil {
		c.Escalation.Phrases = fc.Prompts.EscalationPhrases
	}
	if fc.Prompts.LowConfidenceFloor != nil {
		c.Escalation.LowConfidenceFloor = *fc.Prompts.LowConfidenceFloor
	}

	if fc.Knowledge.Source != "" {
		c.Knowledge.Source = fc.Knowledge.Source
	}
	if fc.Knowledge.Path != "" {
		c.Knowledge.Path = fc.Knowledge.Path
	}

	return nil
}

// applyEnv overlays environment variables; the current values act as defaults
func (c *Config) applyEnv() error {
	env := &envParser{}

	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = env.port(c.Server.Port)
	c.Server.ReadTimeout = env.durationVar("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = env.durationVar("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = env.durationVar("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.TLS.Enabled = env.boolVar("TLS_ENABLED", c.Server.TLS.Enabled)
	c.Server.TLS.CertFile = getEnv("TLS_CERT_FILE", c.Server.TLS.CertFile)
	c.Server.TLS.KeyFile = getEnv("TLS_KEY_FILE", c.Server.TLS.KeyFile)

	c.Database = loadDatabaseConfig(env)

	c.Similarity.Threshold = env.floatVar("SIMILARITY_THRESHOLD", c.Similarity.Threshold)
	if v := os.Getenv("SIMILARITY_WEIGHTING"); v != "" {
		if w, err := textvec.ParseWeighting(v); err != nil {
			env.fail("SIMILARITY_WEIGHTING", v, err)
		} else {
			c.Similarity.Weighting = w
		}
	}
	c.Similarity.AlwaysCallModel = env.boolVar("ALWAYS_CALL_LLM", c.Similarity.AlwaysCallModel)

	c.Escalation.Phrases = getEnvAsList("ESCALATION_PHRASES", c.Escalation.Phrases)
	c.Escalation.LowConfidenceFloor = env.floatVar("LOW_CONFIDENCE_FLOOR", c.Escalation.LowConfidenceFloor)

	c.Model.EndpointURL = getEnv("OLLAMA_ENDPOINT_URL", c.Model.EndpointURL)
	c.Model.Model = getEnv("OLLAMA_MODEL", c.Model.Model)
	c.Model.Temperature = env.floatVar("OLLAMA_TEMPERATURE", c.Model.Temperature)
	c.Model.MaxTokens = env.intVar("OLLAMA_MAX_TOKENS", c.Model.MaxTokens)
	c.Model.Timeout = env.durationVar("OLLAMA_TIMEOUT", c.Model.Timeout)
	c.Model.APIKey = getEnv("OLLAMA_API_KEY", c.Model.APIKey)
	c.Model.SystemPrompt = getEnv("SYSTEM_PROMPT", c.Model.SystemPrompt)
	c.Model.IncludeKBContext = env.boolVar("LLM_INCLUDE_KB_CONTEXT", c.Model.IncludeKBContext)
	c.Model.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Model.OpenAIAPIKey)
	c.Model.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.Model.OpenAIBaseURL)

	c.Retry.MaxAttempts = env.intVar("LLM_RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.Backoff = env.durationVar("LLM_RETRY_BACKOFF", c.Retry.Backoff)
	c.Retry.Budget = env.durationVar("LLM_RETRY_BUDGET", c.Retry.Budget)
	if c.Retry.Budget == 0 {
		c.Retry.Budget = c.Model.Timeout
	}

	c.Knowledge.Source = strings.ToLower(getEnv("KNOWLEDGE_SOURCE", c.Knowledge.Source))
	c.Knowledge.Path = getEnv("KNOWLEDGE_PATH", c.Knowledge.Path)

	c.Audit.Enabled = env.boolVar("AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.BufferSize = env.intVar("AUDIT_BUFFER_SIZE", c.Audit.BufferSize)
	c.Audit.Workers = env.intVar("AUDIT_WORKERS", c.Audit.Workers)
	c.Audit.RedactPII = env.boolVar("AUDIT_REDACT_PII", c.Audit.RedactPII)

	c.Auth.JWTSecret = getEnv("AUTH_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("AUTH_JWT_ISSUER", c.Auth.Issuer)
	c.Auth.AdminRole = getEnv("AUTH_ADMIN_ROLE", c.Auth.AdminRole)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = env.boolVar("METRICS_ENABLED", c.Observability.MetricsEnabled)

	if err := env.err(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.Similarity.Threshold)
	}
	if _, err := textvec.ParseWeighting(string(c.Similarity.Weighting)); err != nil {
		return err
	}

	if err := c.Escalation.Validate(); err != nil {
		return err
	}

	if u, err := url.Parse(c.Model.EndpointURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("model endpoint URL is invalid: %q", c.Model.EndpointURL)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model timeout must be positive")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be in [0, 2]")
	}
	if c.Model.MaxTokens < 0 {
		return fmt.Errorf("model max tokens must not be negative")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	if c.Retry.Budget <= 0 {
		return fmt.Errorf("retry budget must be positive")
	}

	switch c.Knowledge.Source {
	case KnowledgeSourceFile:
		if c.Knowledge.Path == "" {
			return fmt.Errorf("knowledge path is required for the file source")
		}
	case KnowledgeSourcePostgres:
		if !c.Database.Configured() {
			return fmt.Errorf("database configuration required for the postgres knowledge source: set DATABASE_URL or DB_HOST")
		}
	default:
		return fmt.Errorf("unknown knowledge source %q", c.Knowledge.Source)
	}

	if c.Database.Configured() && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Audit.Enabled && (c.Audit.BufferSize < 1 || c.Audit.Workers < 1) {
		return fmt.Errorf("audit buffer size and workers must be positive")
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// AuthEnabled reports whether API routes require a bearer token
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// Configured reports whether any database settings were provided
func (c *DatabaseConfig) Configured() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Neither set means no database.
func loadDatabaseConfig(env *envParser) DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    env.intVar("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    env.intVar("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: env.durationVar("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}

	pool.Host = getEnv("DB_HOST", "")
	if pool.Host == "" {
		return pool
	}
	pool.Port = env.intVar("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "helpdesk")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "helpdesk")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return pool
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables. A malformed value keeps the default and
// is reported by err.
type envParser struct {
	errs []error
}

func (p *envParser) err() error {
	return errors.Join(p.errs...)
}

func (p *envParser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

// port reads PORT, then SERVER_PORT
func (p *envParser) port(defaultValue int) int {
	if os.Getenv("PORT") != "" {
		return p.intVar("PORT", defaultValue)
	}
	return p.intVar("SERVER_PORT", defaultValue)
}

func (p *envParser) intVar(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *envParser) boolVar(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *envParser) floatVar(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

func (p *envParser) durationVar(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		p.fail(key, valueStr, err)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blank items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
