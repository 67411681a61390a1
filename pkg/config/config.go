package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	AI       AIConfig
	Maps     MapsConfig
	Research ResearchConfig
	EStat    EStatConfig
	Storage  StorageConfig
	Redis    RedisConfig
	OTEL     OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// AuthConfig holds HTTP Basic auth credential pairs per realm
type AuthConfig struct {
	AdminUsername   string
	AdminPassword   string
	MedicalUsername string
	MedicalPassword string
	DentalUsername  string
	DentalPassword  string
	OthersUsername  string
	OthersPassword  string
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string

	// AnthropicDirectHTTP bypasses the SDK-shaped client path and issues
	// raw HTTP to the messages API. Behavior is otherwise identical.
	AnthropicDirectHTTP bool

	// OpenAIMaxCompletionTokens caps max_completion_tokens on the
	// chat-completions fallback for responses-API model families.
	OpenAIMaxCompletionTokens int
}

// MapsConfig holds Google Maps configuration
type MapsConfig struct {
	APIKey string
}

// ResearchConfig holds SerpAPI configuration
type ResearchConfig struct {
	SerpAPIKey string
}

// EStatConfig holds e-Stat API configuration
type EStatConfig struct {
	APIKey string
}

// StorageConfig holds persistent file layout configuration
type StorageConfig struct {
	SettingsPath string
	RAGDBPath    string
	RAGDataDir   string
	CacheDir     string
}

// RedisConfig holds optional Redis configuration for the HTTP response cache
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			AdminUsername:   getEnv("ADMIN_USERNAME", ""),
			AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
			MedicalUsername: getEnv("MEDICAL_USERNAME", ""),
			MedicalPassword: getEnv("MEDICAL_PASSWORD", ""),
			DentalUsername:  getEnv("DENTAL_USERNAME", ""),
			DentalPassword:  getEnv("DENTAL_PASSWORD", ""),
			OthersUsername:  getEnv("OTHERS_USERNAME", ""),
			OthersPassword:  getEnv("OTHERS_PASSWORD", ""),
		},
		AI: AIConfig{
			OpenAIKey:                 getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:              getEnv("ANTHROPIC_API_KEY", ""),
			GoogleKey:                 getEnv("GOOGLE_API_KEY", ""),
			AnthropicDirectHTTP:       getEnvAsBool("ANTHROPIC_DIRECT_HTTP", false),
			OpenAIMaxCompletionTokens: getEnvAsInt("OPENAI_MAX_COMPLETION_TOKENS", 16384),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Research: ResearchConfig{
			SerpAPIKey: getEnv("SERPAPI_KEY", ""),
		},
		EStat: EStatConfig{
			APIKey: getEnv("ESTAT_API_KEY", ""),
		},
		Storage: StorageConfig{
			SettingsPath: getEnv("SETTINGS_PATH", "app_settings/admin_settings.json"),
			RAGDBPath:    getEnv("RAG_DB_PATH", "app_settings/rag_data.db"),
			RAGDataDir:   getEnv("RAG_DATA_DIR", "rag/各診療科"),
			CacheDir:     getEnv("CACHE_DIR", "cache"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinic-insight"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Redis host was configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
