package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCredential is matched by a validation error when an enabled
// backend has no credential configured.
var ErrMissingCredential = errors.New("missing credential")

// Backends.
const (
	SourceSheets = "sheets"
	SourceXLSX   = "xlsx"

	StoreNotion = "notion"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const dateLayout = "2006-01-02"

type Config struct {
	// HTTP feed
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Source
	SourceBackend            string
	SourceXLSXPath           string
	SourceXLSXSheet          string
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	LayoutFile               string

	// Remote store
	StoreBackend          string
	NotionAPIKey          string
	NotionDatabaseID      string
	NotionSyncKeyProperty string

	// Database
	SQLiteDBPath   string
	JournalEnabled bool

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Notifications
	SlackWebhookURL string
	DashboardURL    string

	// Pipeline
	ProjectDeadline string
	PageSize        int
	RemoteTimeout   time.Duration
	RetryAttempts   int
	OutputDir       string

	// Worker
	SyncInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SourceBackend:            getEnv("SOURCE_BACKEND", SourceSheets),
		SourceXLSXPath:           getEnv("SOURCE_XLSX_PATH", ""),
		SourceXLSXSheet:          getEnv("SOURCE_XLSX_SHEET", ""),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", "A:Z"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		LayoutFile:               getEnv("LAYOUT_FILE", ""),

		StoreBackend:          getEnv("STORE_BACKEND", StoreNotion),
		NotionAPIKey:          getEnv("NOTION_API_KEY", ""),
		NotionDatabaseID:      getEnv("NOTION_DATABASE_ID", ""),
		NotionSyncKeyProperty: getEnv("NOTION_SYNC_KEY_PROPERTY", ""),

		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/bms.db"),
		JournalEnabled: getEnvBool("JOURNAL_ENABLED", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bms"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync.requested"),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		DashboardURL:    getEnv("DASHBOARD_URL", ""),

		ProjectDeadline: getEnv("PROJECT_DEADLINE", "2026-12-31"),
		PageSize:        getEnvInt("PAGE_SIZE", 100),
		RemoteTimeout:   getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		RetryAttempts:   getEnvInt("RETRY_ATTEMPTS", 3),
		OutputDir:       getEnv("OUTPUT_DIR", ""),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", time.Hour),
	}
}

// Deadline parses ProjectDeadline as a date in loc.
func (c *Config) Deadline(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, c.ProjectDeadline, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid project deadline %q: %w", c.ProjectDeadline, err)
	}
	return d, nil
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems          []string
	missingCredential bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n- %s", strings.Join(e.Problems, "\n- "))
}

func (e *ValidationError) Unwrap() []error {
	if e.missingCredential {
		return []error{ErrMissingCredential}
	}
	return nil
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) credential(format string, args ...any) {
	e.missingCredential = true
	e.add(format, args...)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errs := &ValidationError{}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs.add("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		errs.add("invalid port %d: must be between 1 and 65535", port)
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs.add("invalid log format '%s': must be text or json", c.LogFormat)
	}

	c.validateSource(errs)
	c.validateStore(errs)

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs.add("invalid AMQP URL '%s': %v", c.AMQPURL, err)
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs.add("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme)
		}
		if c.AMQPExchange == "" {
			errs.add("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs.add("AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SlackWebhookURL != "" {
		if u, err := url.Parse(c.SlackWebhookURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			errs.add("invalid Slack webhook URL '%s'", c.SlackWebhookURL)
		}
	}

	if _, err := time.Parse(dateLayout, c.ProjectDeadline); err != nil {
		errs.add("invalid project deadline '%s': must be YYYY-MM-DD", c.ProjectDeadline)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		errs.add("invalid page size %d: must be between 1 and 100", c.PageSize)
	}
	if c.RemoteTimeout < time.Second {
		errs.add("invalid remote timeout %v: must be at least 1 second", c.RemoteTimeout)
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		errs.add("invalid retry attempts %d: must be between 1 and 10", c.RetryAttempts)
	}
	if c.SyncInterval != 0 && (c.SyncInterval < time.Minute || c.SyncInterval > 24*time.Hour) {
		errs.add("invalid sync interval %v: must be 0 or between 1 minute and 24 hours", c.SyncInterval)
	}

	if len(errs.Problems) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateSource(errs *ValidationError) {
	switch c.SourceBackend {
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errs.add("GOOGLE_SPREADSHEET_ID is required when using sheets source")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errs.credential("either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets source")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs.credential("Google service account file does not exist: %s", c.GoogleServiceAccountFile)
			}
		}
	case SourceXLSX:
		if c.SourceXLSXPath == "" {
			errs.add("SOURCE_XLSX_PATH is required when using xlsx source")
		} else if _, err := os.Stat(c.SourceXLSXPath); os.IsNotExist(err) {
			errs.add("workbook does not exist: %s", c.SourceXLSXPath)
		}
	default:
		errs.add("invalid source backend '%s': must be one of %v", c.SourceBackend, []string{SourceSheets, SourceXLSX})
	}

	if c.LayoutFile != "" {
		if _, err := os.Stat(c.LayoutFile); os.IsNotExist(err) {
			errs.add("layout file does not exist: %s", c.LayoutFile)
		}
	}
}

func (c *Config) validateStore(errs *ValidationError) {
	valid := []string{StoreNotion, StoreSQLite, StoreMemory}
	if !slices.Contains(valid, c.StoreBackend) {
		errs.add("invalid store backend '%s': must be one of %v", c.StoreBackend, valid)
		return
	}
	if c.StoreBackend == StoreNotion {
		if c.NotionAPIKey == "" {
			errs.credential("NOTION_API_KEY is required when using notion store")
		}
		if c.NotionDatabaseID == "" {
			errs.add("NOTION_DATABASE_ID is required when using notion store")
		}
	}
	if (c.StoreBackend == StoreSQLite || c.JournalEnabled) && c.SQLiteDBPath == "" {
		errs.add("SQLite database path cannot be empty when the sqlite store or the journal is enabled")
	}
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
