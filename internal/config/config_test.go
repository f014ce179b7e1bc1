package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:                     "8080",
		LogFormat:                "text",
		SourceBackend:            SourceSheets,
		GoogleSpreadsheetID:      "sheet-id",
		GoogleServiceAccountJSON: `{"type":"service_account"}`,
		StoreBackend:             StoreNotion,
		NotionAPIKey:             "secret_x",
		NotionDatabaseID:         "54bfedc3-769e-43e8-bdbc-d59f22008417",
		SQLiteDBPath:             "./data/bms.db",
		JournalEnabled:           true,
		ProjectDeadline:          "2026-12-31",
		PageSize:                 100,
		RemoteTimeout:            30 * time.Second,
		RetryAttempts:            3,
		SyncInterval:             time.Hour,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
		credential  bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "valid memory store without credentials",
			mutate: func(c *Config) { c.StoreBackend = StoreMemory; c.NotionAPIKey = "" },
		},
		{
			name:   "schedule disabled",
			mutate: func(c *Config) { c.SyncInterval = 0 },
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "missing notion key",
			mutate:      func(c *Config) { c.NotionAPIKey = "" },
			errorString: "NOTION_API_KEY is required",
			credential:  true,
		},
		{
			name: "missing google credentials",
			mutate: func(c *Config) {
				c.GoogleServiceAccountJSON = ""
			},
			errorString: "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE",
			credential:  true,
		},
		{
			name:        "unknown store",
			mutate:      func(c *Config) { c.StoreBackend = "postgres" },
			errorString: "invalid store backend 'postgres'",
		},
		{
			name:        "unknown source",
			mutate:      func(c *Config) { c.SourceBackend = "csv" },
			errorString: "invalid source backend 'csv'",
		},
		{
			name:        "xlsx without path",
			mutate:      func(c *Config) { c.SourceBackend = SourceXLSX },
			errorString: "SOURCE_XLSX_PATH is required",
		},
		{
			name:        "bad amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost"; c.AMQPExchange = "bms"; c.AMQPQueue = "q" },
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "amqp without queue",
			mutate:      func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPExchange = "bms" },
			errorString: "AMQP queue name cannot be empty",
		},
		{
			name:        "bad deadline",
			mutate:      func(c *Config) { c.ProjectDeadline = "31/12/2026" },
			errorString: "invalid project deadline '31/12/2026'",
		},
		{
			name:        "page size over notion limit",
			mutate:      func(c *Config) { c.PageSize = 500 },
			errorString: "invalid page size 500",
		},
		{
			name:        "retry attempts",
			mutate:      func(c *Config) { c.RetryAttempts = 0 },
			errorString: "invalid retry attempts 0",
		},
		{
			name:        "sync interval too short",
			mutate:      func(c *Config) { c.SyncInterval = time.Second },
			errorString: "invalid sync interval 1s",
		},
		{
			name:        "log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			errorString: "invalid log format 'xml'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
			assert.Equal(t, tt.credential, errors.Is(err, ErrMissingCredential))
		})
	}
}

func TestConfig_ValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "x"
	cfg.PageSize = 0
	cfg.NotionAPIKey = ""

	err := cfg.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
	assert.Contains(t, err.Error(), "configuration validation failed:\n- ")
}

func TestConfig_ValidateWithFiles(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "sa.json")
	book := filepath.Join(dir, "budget.xlsx")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(book, []byte("x"), 0o600))

	cfg := validConfig()
	cfg.GoogleServiceAccountJSON = ""
	cfg.GoogleServiceAccountFile = creds
	assert.NoError(t, cfg.Validate())

	cfg.GoogleServiceAccountFile = filepath.Join(dir, "missing.json")
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingCredential)

	cfg = validConfig()
	cfg.SourceBackend = SourceXLSX
	cfg.SourceXLSXPath = book
	assert.NoError(t, cfg.Validate())

	cfg.LayoutFile = filepath.Join(dir, "layout.yaml")
	assert.ErrorContains(t, cfg.Validate(), "layout file does not exist")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PORT", "STORE_BACKEND", "SOURCE_BACKEND", "PAGE_SIZE", "SYNC_INTERVAL", "JOURNAL_ENABLED", "PROJECT_DEADLINE"} {
			t.Setenv(key, "")
		}
		cfg := Load()
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, StoreNotion, cfg.StoreBackend)
		assert.Equal(t, SourceSheets, cfg.SourceBackend)
		assert.Equal(t, 100, cfg.PageSize)
		assert.Equal(t, time.Hour, cfg.SyncInterval)
		assert.True(t, cfg.JournalEnabled)
		assert.Equal(t, "2026-12-31", cfg.ProjectDeadline)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("STORE_BACKEND", "sqlite")
		t.Setenv("PAGE_SIZE", "25")
		t.Setenv("REMOTE_TIMEOUT", "5s")
		t.Setenv("JOURNAL_ENABLED", "false")
		t.Setenv("RETRY_ATTEMPTS", "not-a-number")

		cfg := Load()
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, StoreSQLite, cfg.StoreBackend)
		assert.Equal(t, 25, cfg.PageSize)
		assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
		assert.False(t, cfg.JournalEnabled)
		assert.Equal(t, 3, cfg.RetryAttempts, "unparsable values fall back to defaults")
	})
}

func TestDeadline(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	cfg := validConfig()
	d, err := cfg.Deadline(seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, seoul), d)

	cfg.ProjectDeadline = "soon"
	_, err = cfg.Deadline(seoul)
	assert.Error(t, err)
}
