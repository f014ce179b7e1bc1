package backend

import (
	"errors"
	"fmt"
	"time"

	"bms/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Source SourceType
	Store  StoreType

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Excel workbook
	XLSXPath  string
	XLSXSheet string

	// Notion
	NotionAPIKey          string
	NotionDatabaseID      string
	NotionSyncKeyProperty string
	RemoteTimeout         time.Duration

	// SQLite, used by the sqlite store and the journal
	SQLiteDBPath   string
	JournalEnabled bool

	// AMQP is optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Slack is optional
	SlackWebhookURL string
	DashboardURL    string
	Location        *time.Location
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config, loc *time.Location) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{
		Source: SourceType(appConfig.SourceBackend),
		Store:  StoreType(appConfig.StoreBackend),

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetRange:         appConfig.GoogleSheetRange,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		XLSXPath:  appConfig.SourceXLSXPath,
		XLSXSheet: appConfig.SourceXLSXSheet,

		NotionAPIKey:          appConfig.NotionAPIKey,
		NotionDatabaseID:      appConfig.NotionDatabaseID,
		NotionSyncKeyProperty: appConfig.NotionSyncKeyProperty,
		RemoteTimeout:         appConfig.RemoteTimeout,

		SQLiteDBPath:   appConfig.SQLiteDBPath,
		JournalEnabled: appConfig.JournalEnabled,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		SlackWebhookURL: appConfig.SlackWebhookURL,
		DashboardURL:    appConfig.DashboardURL,
		Location:        loc,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Source)
	}
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid store type: %s", c.Store)
	}

	switch c.Source {
	case SheetsSource:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets source")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets source")
		}
	case XLSXSource:
		if c.XLSXPath == "" {
			return errors.New("workbook path is required for xlsx source")
		}
	}

	switch c.Store {
	case NotionStore:
		if c.NotionAPIKey == "" || c.NotionDatabaseID == "" {
			return errors.New("Notion API key and database ID are required for notion store")
		}
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite store")
		}
	}

	if c.JournalEnabled && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required when the journal is enabled")
	}
	return nil
}

// needsSQLite reports whether a sqlite database must be opened.
func (c Config) needsSQLite() bool {
	return c.Store == SQLiteStore || c.JournalEnabled
}
