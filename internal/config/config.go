// Package config provides configuration management for the risk pipeline.
//
// Configuration is loaded from environment variables (with a .env file
// loaded first, if present) and validated once at startup. Every option
// in this file corresponds to an entry in the configuration table of the
// system specification; defaults match the spec exactly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the risk pipeline.
type Config struct {
	DataDir  string // directory for the SQLite event store
	RedisURL string // stream substrate connection string
	LogLevel string // debug, info, warn, error
	Port     int    // HTTP query-surface port

	// Anthropic API credentials for structured extraction + recommendation synthesis.
	AnthropicAPIKey      string
	ExtractionModelFast  string
	ExtractionModelSmart string
	RecommendationModel  string

	FetchIntervalMinutes  int
	DedupTTLSeconds       int
	RelevanceThreshold    float64
	AlertThreshold        float64
	PropagationThreshold  float64
	WorkerBatchSize       int
	WorkerBlockMs         int
	LLMTimeoutMs          int
	EmbeddingTimeoutMs    int
	NotificationTimeoutMs int
	ClaimMinIdleMs        int
	StageDeadlineMs       int

	ExtractionWorkers int
	ScoringWorkers    int
	AlertingWorkers   int

	// Backup is optional; an empty Bucket disables the backup service.
	Backup BackupConfig
}

// BackupConfig configures the periodic store snapshot to S3-compatible storage.
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from the environment, applying spec-mandated defaults.
func Load() (*Config, error) {
	// godotenv.Load returns an error when no .env file exists; that's fine.
	_ = godotenv.Load()

	dataDir := getEnv("CHAINWATCH_DATA_DIR", "./data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		RedisURL: getEnv("CHAINWATCH_REDIS_URL", "redis://localhost:6379/0"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("CHAINWATCH_PORT", 8090),

		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		ExtractionModelFast:  getEnv("CHAINWATCH_EXTRACTION_MODEL_FAST", "claude-haiku-4-5"),
		ExtractionModelSmart: getEnv("CHAINWATCH_EXTRACTION_MODEL_SMART", "claude-sonnet-4-5"),
		RecommendationModel:  getEnv("CHAINWATCH_RECOMMENDATION_MODEL", "claude-haiku-4-5"),

		FetchIntervalMinutes:  getEnvAsInt("CHAINWATCH_FETCH_INTERVAL_MINUTES", 15),
		DedupTTLSeconds:       getEnvAsInt("CHAINWATCH_DEDUP_TTL_SECONDS", 172800),
		RelevanceThreshold:    getEnvAsFloat("CHAINWATCH_RELEVANCE_THRESHOLD", 0.30),
		AlertThreshold:        getEnvAsFloat("CHAINWATCH_ALERT_THRESHOLD", 3.0),
		PropagationThreshold:  getEnvAsFloat("CHAINWATCH_PROPAGATION_THRESHOLD", 1.0),
		WorkerBatchSize:       getEnvAsInt("CHAINWATCH_WORKER_BATCH_SIZE", 10),
		WorkerBlockMs:         getEnvAsInt("CHAINWATCH_WORKER_BLOCK_MS", 5000),
		LLMTimeoutMs:          getEnvAsInt("CHAINWATCH_LLM_TIMEOUT_MS", 30000),
		EmbeddingTimeoutMs:    getEnvAsInt("CHAINWATCH_EMBEDDING_TIMEOUT_MS", 10000),
		NotificationTimeoutMs: getEnvAsInt("CHAINWATCH_NOTIFICATION_TIMEOUT_MS", 5000),
		ClaimMinIdleMs:        getEnvAsInt("CHAINWATCH_CLAIM_MIN_IDLE_MS", 300000),
		StageDeadlineMs:       getEnvAsInt("CHAINWATCH_STAGE_DEADLINE_MS", 60000),

		ExtractionWorkers: getEnvAsInt("CHAINWATCH_EXTRACTION_WORKERS", 2),
		ScoringWorkers:    getEnvAsInt("CHAINWATCH_SCORING_WORKERS", 2),
		AlertingWorkers:   getEnvAsInt("CHAINWATCH_ALERTING_WORKERS", 2),

		Backup: BackupConfig{
			Bucket:          getEnv("CHAINWATCH_BACKUP_BUCKET", ""),
			Endpoint:        getEnv("CHAINWATCH_BACKUP_ENDPOINT", ""),
			Region:          getEnv("CHAINWATCH_BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("CHAINWATCH_BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("CHAINWATCH_BACKUP_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance threshold must be in [0,1], got %v", c.RelevanceThreshold)
	}
	if c.AlertThreshold < 0 {
		return fmt.Errorf("alert threshold must be non-negative, got %v", c.AlertThreshold)
	}
	if c.WorkerBatchSize <= 0 {
		return fmt.Errorf("worker batch size must be positive, got %d", c.WorkerBatchSize)
	}
	return nil
}

// FetchInterval returns FetchIntervalMinutes as a time.Duration.
func (c *Config) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMinutes) * time.Minute
}

// DedupTTL returns DedupTTLSeconds as a time.Duration.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

// LLMTimeout returns LLMTimeoutMs as a time.Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMs) * time.Millisecond
}

// EmbeddingTimeout returns EmbeddingTimeoutMs as a time.Duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutMs) * time.Millisecond
}

// ClaimMinIdle returns ClaimMinIdleMs as a time.Duration.
func (c *Config) ClaimMinIdle() time.Duration {
	return time.Duration(c.ClaimMinIdleMs) * time.Millisecond
}

// WorkerBlock returns WorkerBlockMs as a time.Duration.
func (c *Config) WorkerBlock() time.Duration {
	return time.Duration(c.WorkerBlockMs) * time.Millisecond
}

// StageDeadline returns StageDeadlineMs as a time.Duration.
func (c *Config) StageDeadline() time.Duration {
	return time.Duration(c.StageDeadlineMs) * time.Millisecond
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
