package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Paths
	Paths PathsConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Live feed
	Feed FeedConfig

	// Adjustment webhook (terminal bridge)
	Webhook WebhookConfig

	// API throttle
	APIRateLimit float64 // requests per second, 0 = unlimited
	APIBurst     int

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// PathsConfig holds filesystem locations used by batch and live runs
type PathsConfig struct {
	DataRoot     string // directory holding the report and ticks/
	ReportFile   string // report CSV, relative to DataRoot unless absolute
	OutputDir    string // where ranked tables, artifact and chart data are written
	StrategyFile string // YAML strategy config
	BestConfig   string // best-config artifact read by the live controller
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled bool
	URL     string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FeedConfig holds the live tick websocket settings
type FeedConfig struct {
	URL            string
	ReconnectEvery time.Duration
	MaxBackoff     time.Duration
}

// WebhookConfig holds the endpoint that receives live stop/TP adjustments
type WebhookConfig struct {
	URL           string // empty = log only
	Token         string // sent as a bearer token when set
	Timeout       time.Duration
	RatePerSecond float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	dataRoot := getEnv("EXITLAB_DATA_ROOT", ".")

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Paths: PathsConfig{
			DataRoot:     dataRoot,
			ReportFile:   getEnv("EXITLAB_REPORT", "ReportHistory.csv"),
			OutputDir:    getEnv("EXITLAB_OUTPUT_DIR", dataRoot),
			StrategyFile: getEnv("EXITLAB_STRATEGY", ""),
			BestConfig:   getEnv("EXITLAB_BEST_CONFIG", filepath.Join(dataRoot, "best_config.txt")),
		},

		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Feed: FeedConfig{
			URL:            getEnv("FEED_URL", ""),
			ReconnectEvery: getEnvAsDuration("FEED_RECONNECT_EVERY", "5s"),
			MaxBackoff:     getEnvAsDuration("FEED_MAX_BACKOFF", "60s"),
		},

		Webhook: WebhookConfig{
			URL:           getEnv("WEBHOOK_URL", ""),
			Token:         getEnv("WEBHOOK_TOKEN", ""),
			Timeout:       getEnvAsDuration("WEBHOOK_TIMEOUT", "5s"),
			RatePerSecond: getEnvAsFloat("WEBHOOK_RATE", 5),
		},

		APIRateLimit: getEnvAsFloat("API_RATE_LIMIT", 20),
		APIBurst:     getEnvAsInt("API_BURST", 40),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ReportPath resolves the report file against the data root
func (c *Config) ReportPath() string {
	if filepath.IsAbs(c.Paths.ReportFile) {
		return c.Paths.ReportFile
	}
	return filepath.Join(c.Paths.DataRoot, c.Paths.ReportFile)
}

// SetDataRoot moves the data root; output paths still derived from the old
// root follow it
func (c *Config) SetDataRoot(root string) {
	old := c.Paths.DataRoot
	if c.Paths.OutputDir == old {
		c.Paths.OutputDir = root
	}
	if c.Paths.BestConfig == filepath.Join(old, "best_config.txt") {
		c.Paths.BestConfig = filepath.Join(root, "best_config.txt")
	}
	c.Paths.DataRoot = root
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.APIRateLimit < 0 || c.Webhook.RatePerSecond < 0 {
		return fmt.Errorf("API_RATE_LIMIT and WEBHOOK_RATE must be >= 0")
	}

	if c.Paths.DataRoot == "" {
		return fmt.Errorf("EXITLAB_DATA_ROOT must not be empty")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
