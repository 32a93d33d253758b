package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	OTEL        OTELConfig
	Canon       CanonConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	GraphQLPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// ResponseCacheTTL caches read-mostly GET responses in Redis; zero disables it
	ResponseCacheTTL time.Duration
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	// Driver is "postgres" or "memory"
	Driver string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	QueryTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// CanonConfig holds the tunables of the canonicalization engine
type CanonConfig struct {
	FuzzyThreshold               float64
	CandidateConfidenceThreshold float64
	AllowedEntityTypes           []string
	ClassificationVersion        string
	NormalizationConfigPath      string
	SnoozeDuration               time.Duration
	AliasIndexCacheTTL           time.Duration
	AliasIndexLRUSize            int
	ReResolveWorkers             int
	ReResolveRatePerSecond       float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			GraphQLPort: getEnvAsInt("GRAPHQL_PORT", 8081),

			ReadTimeout:      getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:  getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:   getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ResponseCacheTTL: getEnvAsDuration("RESPONSE_CACHE_TTL", 60*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "coverage_compare"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			QueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "coverage-compare"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Canon: CanonConfig{
			FuzzyThreshold:               getEnvAsFloat("FUZZY_THRESHOLD", 0.85),
			CandidateConfidenceThreshold: getEnvAsFloat("CANDIDATE_CONFIDENCE_THRESHOLD", 0.8),
			AllowedEntityTypes:           getEnvAsList("CANDIDATE_ENTITY_TYPES", []string{"coverage", "disease_scope"}),
			ClassificationVersion:        getEnv("DISEASE_CLASSIFICATION_VERSION", "KCD8"),
			NormalizationConfigPath:      getEnv("NORMALIZATION_CONFIG", ""),
			SnoozeDuration:               getEnvAsDuration("WORKBENCH_SNOOZE_DURATION", 7*24*time.Hour),
			AliasIndexCacheTTL:           getEnvAsDuration("ALIAS_INDEX_CACHE_TTL", time.Hour),
			AliasIndexLRUSize:            getEnvAsInt("ALIAS_INDEX_LRU_SIZE", 4),
			ReResolveWorkers:             getEnvAsInt("RERESOLVE_WORKERS", 4),
			ReResolveRatePerSecond:       getEnvAsFloat("RERESOLVE_RATE_PER_SECOND", 200),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.Store.Driver != "postgres" && c.Store.Driver != "memory" {
		return fmt.Errorf("STORE_DRIVER must be 'postgres' or 'memory', got %q", c.Store.Driver)
	}
	if c.Canon.FuzzyThreshold <= 0 || c.Canon.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be in (0, 1], got %v", c.Canon.FuzzyThreshold)
	}
	if c.Canon.CandidateConfidenceThreshold < 0 || c.Canon.CandidateConfidenceThreshold > 1 {
		return fmt.Errorf("CANDIDATE_CONFIDENCE_THRESHOLD must be in [0, 1], got %v", c.Canon.CandidateConfidenceThreshold)
	}
	if c.Canon.ClassificationVersion == "" {
		return fmt.Errorf("DISEASE_CLASSIFICATION_VERSION must not be empty")
	}
	if c.Canon.ReResolveWorkers <= 0 {
		c.Canon.ReResolveWorkers = 1
	}
	if c.Canon.AliasIndexLRUSize <= 0 {
		c.Canon.AliasIndexLRUSize = 1
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
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
