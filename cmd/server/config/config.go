package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/duragraph/duragraph/internal/infrastructure/connector"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	NATS       NATSConfig
	Redis      RedisConfig
	Tracing    TracingConfig
	ModelsDir  string
	SystemVars map[string]interface{}
	Datasources map[string]connector.Datasource
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TracingConfig holds OTLP exporter configuration
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// Load loads configuration from environment variables. Spec §6: PORT
// defaults to 9000; SYSTEM_VARS and DS are process-wide, loaded once here
// and never mutated afterward.
func Load() (*Config, error) {
	systemVars, err := parseSystemVars(os.Getenv("SYSTEM_VARS"))
	if err != nil {
		return nil, fmt.Errorf("parse SYSTEM_VARS: %w", err)
	}

	datasources, err := parseDatasources(os.Getenv("DS"))
	if err != nil {
		return nil, fmt.Errorf("parse DS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 9000),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "appuser"),
			Password: getEnv("DB_PASSWORD", "apppass"),
			Database: getEnv("DB_NAME", "appdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTLP_ENDPOINT", ""),
			Insecure: getEnv("OTLP_INSECURE", "true") == "true",
		},
		ModelsDir:   getEnv("MODELS_DIR", "./models"),
		SystemVars:  systemVars,
		Datasources: datasources,
	}

	return cfg, nil
}

// parseSystemVars parses SYSTEM_VARS as a flat JSON object. An empty or
// unset value yields an empty map rather than nil, so callers can always
// range over it.
func parseSystemVars(raw string) (map[string]interface{}, error) {
	vars := make(map[string]interface{})
	if raw == "" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// datasourceSpec mirrors the DS env var's per-entry shape: {"type": "...",
// "url": "..."}.
type datasourceSpec struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// parseDatasources parses DS as connector_id -> {type, url} (spec §6).
func parseDatasources(raw string) (map[string]connector.Datasource, error) {
	datasources := make(map[string]connector.Datasource)
	if raw == "" {
		return datasources, nil
	}

	var specs map[string]datasourceSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, err
	}
	for id, spec := range specs {
		datasources[id] = connector.Datasource{Type: spec.Type, URL: spec.URL}
	}
	return datasources, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ServerAddr returns the server address
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
