package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Impact  ImpactConfig
	Poller  PollerConfig
	Storage StorageConfig
	Batch   BatchConfig
	Server  ServerConfig
}

// ImpactConfig holds remote reporting API configuration
type ImpactConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

// PollerConfig holds job-polling backoff configuration
type PollerConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// StorageConfig holds rule-store persistence configuration
type StorageConfig struct {
	Type        string // "file", "dynamodb", "mongodb", "postgresql"
	Directory   string // For file storage
	Region      string // For AWS DynamoDB
	TableName   string
	Endpoint    string // Custom endpoint for local testing
	MongoDBURI  string
	PostgresURI string
}

// BatchConfig holds the multi-report batch scheduling configuration
type BatchConfig struct {
	ReportIDs   []string
	Interval    time.Duration
	DefaultTeam string
	StartDate   string
	EndDate     string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Impact: ImpactConfig{
			BaseURL:    getEnv("IMPACT_BASE_URL", "https://api.impact.com"),
			AccountSID: getEnv("IMPACT_ACCOUNT_SID", ""),
			AuthToken:  getEnv("IMPACT_AUTH_TOKEN", ""),
			Timeout:    getEnvDuration("IMPACT_TIMEOUT", 30*time.Second),
		},
		Poller: PollerConfig{
			InitialDelay: getEnvDuration("POLL_INITIAL_DELAY", 5*time.Second),
			MaxDelay:     getEnvDuration("POLL_MAX_DELAY", 60*time.Second),
			Multiplier:   getEnvFloat("POLL_BACKOFF_MULTIPLIER", 1.5),
			MaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 20),
		},
		Storage: StorageConfig{
			Type:        getEnv("STORAGE_TYPE", "file"),
			Directory:   getEnv("STORAGE_DIR", "./data"),
			Region:      getEnv("AWS_REGION", "us-west-2"),
			TableName:   getEnv("TABLE_NAME", "team_rules"),
			Endpoint:    getEnv("DYNAMODB_ENDPOINT", ""), // For local DynamoDB
			MongoDBURI:  getEnv("MONGODB_URI", ""),
			PostgresURI: getEnv("POSTGRES_URI", ""),
		},
		Batch: BatchConfig{
			ReportIDs:   getEnvList("REPORT_IDS", nil),
			Interval:    getEnvDuration("BATCH_INTERVAL", 6*time.Hour),
			DefaultTeam: getEnv("DEFAULT_TEAM", "Unassigned"),
			StartDate:   getEnv("REPORT_START_DATE", ""),
			EndDate:     getEnv("REPORT_END_DATE", ""),
		},
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
