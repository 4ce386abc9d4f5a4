package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI       string
	DBName         string
	Port           string
	GinMode        string
	CORSOrigins    []string
	MaxFileSize    int64
	FileStorageDir string

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default)
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	DefaultEmbeddingModel string // catalog model id assumed when none requested
	EmbeddingConcurrency  int    // in-flight batch sub-requests ceiling
	EmbeddingRPM          int    // provider requests per minute

	// Chunking defaults
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int

	// Search defaults
	SearchLimit     int
	SearchThreshold float64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheTTLSecs  int

	// HTTP rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/persona_knowledge"),
		DBName:         getEnv("DB_NAME", "persona_knowledge"),
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB upload cap
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		// Embeddings
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		DefaultEmbeddingModel: getEnv("DEFAULT_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingConcurrency:  getEnvInt("EMBEDDING_CONCURRENCY", 3),
		EmbeddingRPM:          getEnvInt("EMBEDDING_RPM", 60),

		// Chunking defaults
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MaxChunks:    getEnvInt("MAX_CHUNKS", 50),

		// Search defaults
		SearchLimit:     getEnvInt("SEARCH_LIMIT", 5),
		SearchThreshold: getEnvFloat64("SEARCH_THRESHOLD", 0.7),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTLSecs:  getEnvInt("CACHE_TTL_SECONDS", 3600),

		// HTTP rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Tracing
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("CHUNK_SIZE must be at least 1")
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("CHUNK_OVERLAP must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
