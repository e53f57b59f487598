package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hoursboard/internal/log"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ConfigFileEnv names the optional YAML file applied before environment overrides.
const ConfigFileEnv = "HOURSBOARD_CONFIG"

type Config struct {
	// HTTP Server
	Port               string `yaml:"port"`
	LogLevel           string `yaml:"log_level"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	SecureCookies      bool   `yaml:"secure_cookies"`

	// Tables and sessions
	TableCacheSize int           `yaml:"table_cache_size"`
	TableCacheTTL  time.Duration `yaml:"table_cache_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`

	// Upload catalog
	DataBackend  string `yaml:"data_backend"`
	SQLiteDBPath string `yaml:"sqlite_db_path"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets
	GoogleSpreadsheetID      string `yaml:"google_spreadsheet_id"`
	GoogleReportSheet        string `yaml:"google_report_sheet"`
	GoogleServiceAccountJSON string `yaml:"-"`
	GoogleServiceAccountFile string `yaml:"google_service_account_file"`
	GoogleImportSheet        string `yaml:"google_import_sheet"`
	// ImportDir serves imports from local CSV tabs when Google Sheets is not configured.
	ImportDir string `yaml:"import_dir"`

	// Report worker
	ReportPollInterval time.Duration `yaml:"report_poll_interval"`
	ReportBatchSize    int           `yaml:"report_batch_size"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:               "8080",
		LogLevel:           "info",
		MaxUploadMB:        20,
		RateLimitPerMinute: 120,
		TableCacheSize:     16,
		TableCacheTTL:      time.Hour,
		SessionTTL:         12 * time.Hour,
		DataBackend:        BackendMemory,
		SQLiteDBPath:       "./data/hoursboard.db",
		AMQPExchange:       "hoursboard",
		AMQPQueue:          "upload_reports",
		GoogleReportSheet:  "Reports",
		GoogleImportSheet:  "Hours",
		ReportPollInterval: 5 * time.Minute,
		ReportBatchSize:    10,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// HOURSBOARD_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// MergeFile overlays the keys present in a YAML file.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies)

	c.TableCacheSize = getEnvInt("TABLE_CACHE_SIZE", c.TableCacheSize)
	c.TableCacheTTL = getEnvDuration("TABLE_CACHE_TTL", c.TableCacheTTL)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)

	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleReportSheet = getEnv("GOOGLE_REPORT_SHEET", c.GoogleReportSheet)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleImportSheet = getEnv("GOOGLE_IMPORT_SHEET", c.GoogleImportSheet)
	c.ImportDir = getEnv("IMPORT_DIR", c.ImportDir)

	c.ReportPollInterval = getEnvDuration("REPORT_POLL_INTERVAL", c.ReportPollInterval)
	c.ReportBatchSize = getEnvInt("REPORT_BATCH_SIZE", c.ReportBatchSize)
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// AMQPEnabled reports whether upload events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// GoogleEnabled reports whether Google Sheets import and reporting are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 512 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %dMB: must be between 1 and 512", c.MaxUploadMB))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if c.TableCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid table cache size %d: must be at least 1", c.TableCacheSize))
	}
	if c.TableCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid table cache TTL %v: must be at least 1 second", c.TableCacheTTL))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided with GOOGLE_SPREADSHEET_ID")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.GoogleReportSheet == "" {
			errors = append(errors, "Google report sheet name cannot be empty when GOOGLE_SPREADSHEET_ID is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the report worker cannot run without.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the report worker")
	}
	if c.DataBackend != BackendSQLite {
		errors = append(errors, "DATA_BACKEND must be sqlite for the report worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the report worker")
	}
	if c.ReportPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report poll interval %v: must be at least 1 second", c.ReportPollInterval))
	}
	if c.ReportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report batch size %d: must be at least 1", c.ReportBatchSize))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return c.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
