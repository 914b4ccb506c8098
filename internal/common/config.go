package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	Search   SearchConfig
	LLM      LLMConfig
	Rating   RatingConfig
	Inbox    InboxConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	HealthTimeout    time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Backend  string // "gcs" | "local"
	Bucket   string
	LocalDir string
}

// SearchConfig holds search-service configuration
type SearchConfig struct {
	APIKey     string
	BaseURL    string
	Depth      string
	MaxResults int
	Timeout    time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string // "gemini" | "openai"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// RatingConfig holds rating-engine configuration
type RatingConfig struct {
	Workers           int
	ItemTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	VolumetricDivisor int
}

// InboxConfig holds the watched drop directory; an empty Dir disables it.
type InboxConfig struct {
	Dir            string
	Workers        int
	QueueSize      int
	Debounce       time.Duration
	ProcessTimeout time.Duration
	Persist        bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", "gemini"))
	llmKey, llmModel := getEnv("GOOGLE_API_KEY", ""), "gemini-2.5-flash"
	if provider == "openai" {
		llmKey, llmModel = getEnv("OPENAI_API_KEY", ""), "gpt-4o-mini"
	}

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			HealthTimeout:    getEnvAsDuration("DB_HEALTH_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":8081"),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 32)) << 20,
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getEnv("STORAGE_BACKEND", "gcs")),
			Bucket:   getEnv("BUCKET_NAME", ""),
			LocalDir: getEnv("STORAGE_LOCAL_DIR", "./tmp/storage"),
		},
		Search: SearchConfig{
			APIKey:     getEnv("TAVILY_API_KEY", ""),
			BaseURL:    getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
			Depth:      getEnv("TAVILY_SEARCH_DEPTH", "advanced"),
			MaxResults: getEnvAsInt("TAVILY_MAX_RESULTS", 5),
			Timeout:    getEnvAsDuration("TAVILY_TIMEOUT", 20*time.Second),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", llmModel),
			APIKey:      llmKey,
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Rating: RatingConfig{
			Workers:           getEnvAsInt("RATING_WORKERS", 4),
			ItemTimeout:       getEnvAsDuration("RATING_ITEM_TIMEOUT", 90*time.Second),
			RequestsPerSecond: getEnvAsFloat64("RATING_RPS", 2),
			Burst:             getEnvAsInt("RATING_BURST", 4),
			VolumetricDivisor: getEnvAsInt("VOLUMETRIC_DIVISOR", 4000),
		},
		Inbox: InboxConfig{
			Dir:            getEnv("INBOX_DIR", ""),
			Workers:        getEnvAsInt("INBOX_WORKERS", 2),
			QueueSize:      getEnvAsInt("INBOX_QUEUE_SIZE", 64),
			Debounce:       getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
			ProcessTimeout: getEnvAsDuration("INBOX_PROCESS_TIMEOUT", 10*time.Minute),
			Persist:        getEnvAsBool("INBOX_PERSIST", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every long-running command needs.
// Commands that skip a subsystem (e.g. -inmem) validate only what they use.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if err := c.ValidateResolution(); err != nil {
		return err
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Rating.VolumetricDivisor <= 0 {
		return NewAppError("CONFIG_ERROR", "VOLUMETRIC_DIVISOR must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateResolution checks the search and LLM credentials.
func (c *Config) ValidateResolution() error {
	if c.Search.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "TAVILY_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GOOGLE_API_KEY or OPENAI_API_KEY is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be gemini or openai", ErrInvalidInput)
	}
	return nil
}

// ValidateStorage checks the object storage backend settings.
func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.Bucket == "" {
			return NewAppError("CONFIG_ERROR", "BUCKET_NAME is required for the gcs backend", ErrInvalidInput)
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return NewAppError("CONFIG_ERROR", "STORAGE_LOCAL_DIR is required for the local backend", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "STORAGE_BACKEND must be gcs or local", ErrInvalidInput)
	}
	return nil
}
