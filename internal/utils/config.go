package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	JWTSecret  string
	Logging    LoggingConfig
	Storage    StorageConfig
	Providers  ProvidersConfig
	Limits     LimitsConfig
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// StorageConfig selects and configures the durable key->document backend.
type StorageConfig struct {
	Backend  string
	DataDir  string
	Redis    RedisConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN            string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

type ProvidersConfig struct {
	OpenRouter OpenRouterConfig
	Groq       GroqConfig
}

// OpenRouterConfig holds the aggregator provider settings. Multiple API keys
// may be supplied; requests pick one at random.
type OpenRouterConfig struct {
	BaseURL string
	APIKeys []string
	Referer string
	Title   string
}

// GroqConfig holds the fast-inference provider settings.
type GroqConfig struct {
	BaseURL string
	APIKey  string
}

// LimitsConfig bounds conversation retention and outgoing context size.
type LimitsConfig struct {
	MaxConversations   int
	MaxMessages        int
	ContextTokenBudget int
}

func LoadConfig() (*Config, error) {
	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "mod-ai-assistant"),
	}

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))

	storage := StorageConfig{
		Backend: strings.ToLower(envOrDefault("STORAGE_BACKEND", "file")),
		DataDir: envOrDefault("DATA_DIR", "data"),
		Redis: RedisConfig{
			Addr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseInt(envOrDefault("REDIS_DB", "0"), 0),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "assistant"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			Host:           envOrDefault("POSTGRES_HOST", "localhost"),
			Port:           pgPort,
			User:           envOrDefault("POSTGRES_USER", "postgres"),
			Password:       os.Getenv("POSTGRES_PASSWORD"),
			Database:       envOrDefault("POSTGRES_DB", "assistant"),
			MaxConns:       parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8),
			MinConns:       parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1),
			ConnectTimeout: parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
	}

	providers := ProvidersConfig{
		OpenRouter: OpenRouterConfig{
			BaseURL: strings.TrimRight(envOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			APIKeys: splitCSV(os.Getenv("OPENROUTER_API_KEYS")),
			Referer: envOrDefault("OPENROUTER_REFERER", "https://mod-ai-assistant.app"),
			Title:   envOrDefault("OPENROUTER_TITLE", "Mod AI Assistant"),
		},
		Groq: GroqConfig{
			BaseURL: strings.TrimRight(envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"), "/"),
			APIKey:  strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		},
	}

	// A single OPENROUTER_API_KEY still works when no key list is supplied.
	if len(providers.OpenRouter.APIKeys) == 0 {
		if key := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); key != "" {
			providers.OpenRouter.APIKeys = []string{key}
		}
	}

	limits := LimitsConfig{
		MaxConversations:   parsePositiveInt(envOrDefault("MAX_CONVERSATIONS", "50"), 50),
		MaxMessages:        parsePositiveInt(envOrDefault("MAX_MESSAGES", "100"), 100),
		ContextTokenBudget: parsePositiveInt(envOrDefault("CONTEXT_TOKEN_BUDGET", "4000"), 4000),
	}

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "8080"),
		JWTSecret:  envOrDefault("JWT_SECRET", "dev-secret"),
		Logging:    logging,
		Storage:    storage,
		Providers:  providers,
		Limits:     limits,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "file", "redis", "mongo", "postgres":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return i
}

func parsePositiveInt(value string, fallback int) int {
	i := parseInt(value, fallback)
	if i <= 0 {
		return fallback
	}
	return i
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
