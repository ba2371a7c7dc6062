package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	Matching  MatchingConfig
	Automatch AutomatchConfig
	TLS       TLSConfig
	Firebase  FirebaseConfig
	Messages  MessagesConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
	// RequireHTTPS redirects plain HTTP API calls; used when a proxy terminates TLS.
	RequireHTTPS bool
}

// BackendConfig points at the reconciliation REST backend.
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MatchingConfig struct {
	SessionTTL time.Duration
}

type AutomatchConfig struct {
	Enabled       bool
	ScheduleTimes []string
	MinScore      float64
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	Timeout       time.Duration
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	DeviceTokens    []string
}

type MessagesConfig struct {
	File string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiTimeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}

	sessionTTL, err := time.ParseDuration(getEnv("MATCH_SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_SESSION_TTL: %w", err)
	}

	// Parse automatch configuration
	automatchTimes := splitList(getEnv("AUTOMATCH_TIMES", "06:00,18:00"))
	automatchMinScore, err := strconv.ParseFloat(getEnv("AUTOMATCH_MIN_SCORE", "0.9"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOMATCH_MIN_SCORE: %w", err)
	}
	automatchWorkers, err := strconv.Atoi(getEnv("AUTOMATCH_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOMATCH_WORKERS: %w", err)
	}
	automatchJobDelay, err := time.ParseDuration(getEnv("AUTOMATCH_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOMATCH_JOB_DELAY: %w", err)
	}
	automatchQueueSize, err := strconv.Atoi(getEnv("AUTOMATCH_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOMATCH_QUEUE_SIZE: %w", err)
	}
	automatchTimeout, err := time.ParseDuration(getEnv("AUTOMATCH_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTOMATCH_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: splitList(getEnv("ALLOWED_HOSTS", "")),
			RequireHTTPS: getBoolEnv("REQUIRE_HTTPS", false),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("API_BASE_URL", ""),
			APIKey:  getEnv("API_KEY", ""),
			Timeout: apiTimeout,
		},
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("MATCH_LOG_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "bizconsole"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "bizconsole"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Matching: MatchingConfig{
			SessionTTL: sessionTTL,
		},
		Automatch: AutomatchConfig{
			Enabled:       getBoolEnv("AUTOMATCH_ENABLED", false),
			ScheduleTimes: automatchTimes,
			MinScore:      automatchMinScore,
			WorkerCount:   automatchWorkers,
			JobDelay:      automatchJobDelay,
			QueueSize:     automatchQueueSize,
			Timeout:       automatchTimeout,
			RunOnStartup:  getBoolEnv("AUTOMATCH_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			DeviceTokens:    splitList(getEnv("NOTIFY_DEVICE_TOKENS", "")),
		},
		Messages: MessagesConfig{
			File: getEnv("MESSAGES_FILE", "messages.json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "bizconsole"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL must be an absolute URL")
	}

	if cfg.Automatch.MinScore < 0 || cfg.Automatch.MinScore > 1 {
		return nil, fmt.Errorf("AUTOMATCH_MIN_SCORE must be between 0 and 1")
	}
	if cfg.Automatch.WorkerCount <= 0 {
		return nil, fmt.Errorf("AUTOMATCH_WORKERS must be positive")
	}
	if cfg.Automatch.Enabled {
		for _, t := range cfg.Automatch.ScheduleTimes {
			if _, err := time.Parse("15:04", t); err != nil {
				return nil, fmt.Errorf("invalid AUTOMATCH_TIMES entry %q: expected HH:MM", t)
			}
		}
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
