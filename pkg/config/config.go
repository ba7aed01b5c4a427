package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Remote tool services and the gateway API
	Endpoints EndpointConfig

	// Info-collector source identifiers, called in this order per stock
	InfoSources []string

	// Text generation
	LLM LLMConfig

	// Daily cycle clock checkpoints
	Schedule ScheduleConfig

	// Status publishing
	StatusMaxLen int

	// Prompt template override (YAML). Empty = embedded defaults
	PromptsFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
	TracingEnabled bool
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
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EndpointConfig holds the base URLs of the collaborating services
type EndpointConfig struct {
	InfoCollectorURL   string
	SignalPredictorURL string
	TraderURL          string
	GatewayURL         string
	PredictorPort      string // listen port when this process serves the predictor tool
}

// LLMConfig holds generator configuration
type LLMConfig struct {
	APIKey     string
	BaseURL    string
	LowModel   string
	HighModel  string
	MaxCalls   int
	Window     time.Duration
	WaitMargin time.Duration
	Timeout    time.Duration
}

// ScheduleConfig holds the fixed clock checkpoints of the daily cycle.
// Clock values are "HH:MM:SS" in Timezone.
type ScheduleConfig struct {
	Timezone            string
	CollectAt           string
	EndOfDayAt          string
	MarketPollInterval  time.Duration
	MarketClosedSleep   time.Duration
	RestartDelay        time.Duration
	PipelineConcurrency int
}

// Location resolves the schedule timezone. Load rejects unknown zones,
// so the UTC fallback only applies to hand-built configs.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
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

		Endpoints: EndpointConfig{
			InfoCollectorURL:   getEnv("INFO_COLLECTOR_URL", ""),
			SignalPredictorURL: getEnv("SIGNAL_PREDICTOR_URL", ""),
			TraderURL:          getEnv("TRADER_URL", ""),
			GatewayURL:         getEnv("GATEWAY_URL", ""),
			PredictorPort:      getEnv("PREDICTOR_PORT", "9001"),
		},

		InfoSources: getEnvAsList("INFO_SOURCES", "yhf,aks,cls,sina"),

		LLM: LLMConfig{
			APIKey:     getEnv("LLM_API_KEY", ""),
			BaseURL:    getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			LowModel:   getEnv("LLM_LOW_MODEL", "gemma-3-27b-it"),
			HighModel:  getEnv("LLM_HIGH_MODEL", "gemini-2.5-flash"),
			MaxCalls:   getEnvAsInt("LLM_MAX_CALLS", 10),
			Window:     getEnvAsDuration("LLM_WINDOW", "60s"),
			WaitMargin: getEnvAsDuration("LLM_WAIT_MARGIN", "100ms"),
			Timeout:    getEnvAsDuration("LLM_TIMEOUT", "120s"),
		},

		Schedule: ScheduleConfig{
			Timezone:            getEnv("MARKET_TZ", "Asia/Shanghai"),
			CollectAt:           getEnv("COLLECT_AT", "08:45:00"),
			EndOfDayAt:          getEnv("END_OF_DAY_AT", "23:59:59"),
			MarketPollInterval:  getEnvAsDuration("MARKET_POLL_INTERVAL", "1h"),
			MarketClosedSleep:   getEnvAsDuration("MARKET_CLOSED_SLEEP", "24h"),
			RestartDelay:        getEnvAsDuration("RESTART_DELAY", "2m"),
			PipelineConcurrency: getEnvAsInt("PIPELINE_CONCURRENCY", 1),
		},

		StatusMaxLen: getEnvAsInt("STATUS_MAX_LEN", 100),
		PromptsFile:  getEnv("PROMPTS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		TracingEnabled: getEnvAsBool("TRACING_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks values every process depends on
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.LLM.MaxCalls <= 0 {
		return fmt.Errorf("LLM_MAX_CALLS must be positive")
	}
	if c.LLM.Window <= 0 {
		return fmt.Errorf("LLM_WINDOW must be positive")
	}

	if c.Schedule.PipelineConcurrency <= 0 {
		return fmt.Errorf("PIPELINE_CONCURRENCY must be positive")
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid MARKET_TZ %q: %w", c.Schedule.Timezone, err)
	}

	for _, clock := range []string{c.Schedule.CollectAt, c.Schedule.EndOfDayAt} {
		if _, err := time.Parse("15:04:05", clock); err != nil {
			return fmt.Errorf("invalid clock %q: %w", clock, err)
		}
	}

	return nil
}

// RequireOrchestrator fails fast when an endpoint the daily cycle needs is missing
func (c *Config) RequireOrchestrator() error {
	missing := []string{}
	if c.Endpoints.InfoCollectorURL == "" {
		missing = append(missing, "INFO_COLLECTOR_URL")
	}
	if c.Endpoints.SignalPredictorURL == "" {
		missing = append(missing, "SIGNAL_PREDICTOR_URL")
	}
	if c.Endpoints.TraderURL == "" {
		missing = append(missing, "TRADER_URL")
	}
	if c.Endpoints.GatewayURL == "" {
		missing = append(missing, "GATEWAY_URL")
	}
	if len(c.InfoSources) == 0 {
		missing = append(missing, "INFO_SOURCES")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return c.RequireLLM()
}

// RequireLLM fails fast when the generator cannot authenticate
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	return nil
}

// RequireDatabase fails fast when no database is configured
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
