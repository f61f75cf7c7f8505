package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	apperrors "nomnom-api/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port        string
	Env         string
	GraphQLPath string
	LogFile     string

	// CORS
	CORSAllowedOrigins []string

	// Neo4j
	Neo4jURI         string
	Neo4jUser        string
	Neo4jPassword    string
	Neo4jDatabase    string
	Neo4jMaxPoolSize int

	// Caller identity
	JWKSURL      string
	JWKSCacheTTL time.Duration
	JWTIssuer    string
	JWTAudience  string
	JWTSecret    string // HS256 secret for local development only

	// Chat assistant (optional)
	AssistantURL    string
	AssistantAPIKey string
	AssistantModel  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "4000"),
		Env:                getEnv("ENV", getEnv("NODE_ENV", "development")),
		GraphQLPath:        getEnv("GRAPHQL_PATH", "/api/graphql"),
		LogFile:            getEnv("LOG_FILE", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Neo4jURI:           getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:      getEnv("NEO4J_DATABASE", ""),
		Neo4jMaxPoolSize:   getEnvInt("NEO4J_MAX_POOL_SIZE", 100),
		JWKSURL:            getEnv("JWKS_URL", getEnv("COGNITO_USER_POOL_JWKS_ENDPOINT_URL", "")),
		JWKSCacheTTL:       getEnvDuration("JWKS_CACHE_TTL", time.Hour),
		JWTIssuer:          getEnv("JWT_ISSUER", ""),
		JWTAudience:        getEnv("JWT_AUDIENCE", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AssistantURL:       getEnv("ASSISTANT_URL", ""),
		AssistantAPIKey:    getEnv("ASSISTANT_API_KEY", ""),
		AssistantModel:     getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_URI")
	}
	if c.Neo4jUser == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_USER")
	}
	if c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	if c.JWKSURL == "" && c.JWTSecret == "" {
		return apperrors.NewConfigMissingRequired("JWKS_URL")
	}
	// The shared-secret verifier is a development convenience only.
	if c.IsProduction() && c.JWKSURL == "" {
		return apperrors.NewConfigMissingRequired("JWKS_URL")
	}
	if !strings.HasPrefix(c.GraphQLPath, "/") {
		return fmt.Errorf("GRAPHQL_PATH must start with '/': %q", c.GraphQLPath)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AssistantEnabled reports whether an automated chat counterpart is configured
func (c *Config) AssistantEnabled() bool {
	return c.AssistantURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
