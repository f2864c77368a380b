// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	JWT          JWTConfig          `json:"jwt"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Facebook     FacebookConfig     `json:"facebook"`
	LLM          LLMConfig          `json:"llm"`
	WhatsApp     WhatsAppConfig     `json:"whatsapp"`
	Sync         SyncConfig         `json:"sync"`
	Notification NotificationConfig `json:"notification"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

// JWTConfig describes how bearer tokens issued by the account service are verified
type JWTConfig struct {
	SecretKey  string `json:"secret_key"`
	PublicKey  string `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
}

type LoggingConfig struct {
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Access Logs
	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis, memory
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// FacebookConfig configures the Graph API gateway
type FacebookConfig struct {
	BaseURL    string        `json:"base_url"`
	APIVersion string        `json:"api_version"`
	Timeout    time.Duration `json:"timeout"`
	PageLimit  int           `json:"page_limit"`
}

// LLMConfig configures the chat-completion endpoint used for narratives
type LLMConfig struct {
	Enabled  bool          `json:"enabled"`
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// WhatsAppConfig configures the WhatsApp Cloud API sender
type WhatsAppConfig struct {
	Provider           string        `json:"provider"` // cloud, mock
	BaseURL            string        `json:"base_url"`
	APIVersion         string        `json:"api_version"`
	PhoneNumberID      string        `json:"phone_number_id"`
	AccessToken        string        `json:"access_token"`
	DefaultCountryCode string        `json:"default_country_code"`
	Timeout            time.Duration `json:"timeout"`
}

// SyncConfig bounds the campaign synchronization run
type SyncConfig struct {
	Concurrency    int           `json:"concurrency"`
	Timeout        time.Duration `json:"timeout"`
	CacheFreshness time.Duration `json:"cache_freshness"`
	LockTTL        time.Duration `json:"lock_ttl"`
	DefaultWindow  string        `json:"default_window"`
	HourlyBuckets  bool          `json:"hourly_buckets"`
}

// NotificationConfig controls dispatch throttling
type NotificationConfig struct {
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	RateLimiter        string `json:"rate_limiter"` // memory, redis
}

// SchedulerConfig controls the optional in-process cron trigger
type SchedulerConfig struct {
	Enabled         bool   `json:"enabled"`
	SyncSpec        string `json:"sync_spec"`
	DetectSpec      string `json:"detect_spec"`
	MorningSpec     string `json:"morning_spec"`
	AfternoonSpec   string `json:"afternoon_spec"`
	EveningSpec     string `json:"evening_spec"`
	LogFilePath     string `json:"log_file_path"`
	DispatchAlerts  bool   `json:"dispatch_alerts"`
	SendDailyReport bool   `json:"send_daily_report"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 6*time.Minute),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			Issuer:     getEnvString("JWT_ISSUER", "adwatch"),
			Audience:   getEnvString("JWT_AUDIENCE", "adwatch-api"),
		},
		Logging: LoggingConfig{
			Output:          getEnvString("LOG_OUTPUT", "both"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/adwatch/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "adwatch:"),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second),
		},
		Facebook: FacebookConfig{
			BaseURL:    getEnvString("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
			APIVersion: getEnvString("FACEBOOK_API_VERSION", "v19.0"),
			Timeout:    getEnvDuration("FACEBOOK_TIMEOUT", 30*time.Second),
			PageLimit:  getEnvInt("FACEBOOK_PAGE_LIMIT", 100),
		},
		LLM: LLMConfig{
			Enabled:  getEnvBool("LLM_ENABLED", true),
			BaseURL:  getEnvString("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:   getEnvString("LLM_API_KEY", ""),
			Model:    getEnvString("LLM_MODEL", "gpt-4o-mini"),
			Timeout:  getEnvDuration("LLM_TIMEOUT", 20*time.Second),
			CacheTTL: getEnvDuration("LLM_CACHE_TTL", 5*time.Minute),
		},
		WhatsApp: WhatsAppConfig{
			Provider:           getEnvString("WHATSAPP_PROVIDER", "mock"),
			BaseURL:            getEnvString("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:         getEnvString("WHATSAPP_API_VERSION", "v19.0"),
			PhoneNumberID:      getEnvString("WHATSAPP_PHONE_NUMBER_ID", ""),
			AccessToken:        getEnvString("WHATSAPP_ACCESS_TOKEN", ""),
			DefaultCountryCode: getEnvString("WHATSAPP_DEFAULT_COUNTRY_CODE", "1"),
			Timeout:            getEnvDuration("WHATSAPP_TIMEOUT", 15*time.Second),
		},
		Sync: SyncConfig{
			Concurrency:    getEnvInt("SYNC_CONCURRENCY", 5),
			Timeout:        getEnvDuration("SYNC_TIMEOUT", 5*time.Minute),
			CacheFreshness: getEnvDuration("SYNC_CACHE_FRESHNESS", 15*time.Minute),
			LockTTL:        getEnvDuration("SYNC_LOCK_TTL", 6*time.Minute),
			DefaultWindow:  getEnvString("SYNC_DEFAULT_WINDOW", "today"),
			HourlyBuckets:  getEnvBool("SYNC_HOURLY_BUCKETS", true),
		},
		Notification: NotificationConfig{
			RateLimitPerMinute: getEnvInt("NOTIFICATION_RATE_LIMIT_PER_MINUTE", 10),
			RateLimiter:        getEnvString("NOTIFICATION_RATE_LIMITER", "memory"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvBool("SCHEDULER_ENABLED", false),
			SyncSpec:        getEnvString("SCHEDULER_SYNC_SPEC", "*/30 * * * *"),
			DetectSpec:      getEnvString("SCHEDULER_DETECT_SPEC", "5,35 * * * *"),
			MorningSpec:     getEnvString("SCHEDULER_MORNING_SPEC", "0 8 * * *"),
			AfternoonSpec:   getEnvString("SCHEDULER_AFTERNOON_SPEC", "0 13 * * *"),
			EveningSpec:     getEnvString("SCHEDULER_EVENING_SPEC", "0 19 * * *"),
			LogFilePath:     getEnvString("SCHEDULER_LOG_FILE_PATH", "/var/log/adwatch/scheduler.log"),
			DispatchAlerts:  getEnvBool("SCHEDULER_DISPATCH_ALERTS", true),
			SendDailyReport: getEnvBool("SCHEDULER_SEND_DAILY_REPORT", true),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Set environment variable if not already set
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if !cfg.JWT.UseRSAKeys && len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.UseRSAKeys && cfg.JWT.PublicKey == "" {
		errors = append(errors, "JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is set")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate logging configuration
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		errors = append(errors, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	// Validate upstream integrations
	if cfg.Facebook.BaseURL == "" || cfg.Facebook.APIVersion == "" {
		errors = append(errors, "FACEBOOK_GRAPH_URL and FACEBOOK_API_VERSION are required")
	}
	if cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		errors = append(errors, "LLM_API_KEY is required when LLM_ENABLED is true")
	}
	if cfg.WhatsApp.Provider != "mock" {
		if cfg.WhatsApp.PhoneNumberID == "" {
			errors = append(errors, "WHATSAPP_PHONE_NUMBER_ID is required for the cloud provider")
		}
		if cfg.WhatsApp.AccessToken == "" {
			errors = append(errors, "WHATSAPP_ACCESS_TOKEN is required for the cloud provider")
		}
	}

	// Validate pipeline bounds
	if cfg.Sync.Concurrency <= 0 {
		errors = append(errors, "SYNC_CONCURRENCY must be positive")
	}
	if cfg.Sync.DefaultWindow != "today" && cfg.Sync.DefaultWindow != "yesterday" {
		errors = append(errors, "SYNC_DEFAULT_WINDOW must be today or yesterday")
	}
	if cfg.Sync.Timeout <= 0 {
		errors = append(errors, "SYNC_TIMEOUT must be positive")
	}
	if cfg.Notification.RateLimitPerMinute <= 0 {
		errors = append(errors, "NOTIFICATION_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if cfg.Notification.RateLimiter == "redis" && (!cfg.Cache.Enabled || cfg.Cache.Provider != "redis") {
		errors = append(errors, "NOTIFICATION_RATE_LIMITER=redis requires the redis cache to be enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
