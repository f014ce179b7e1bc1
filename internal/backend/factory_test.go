package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bms/internal/config"
	"bms/internal/log"
	"bms/internal/notify"
	memstore "bms/internal/remote/memory"
	"bms/internal/remote/notion"
	"bms/internal/sheets/xlsx"
	"bms/internal/storage"
)

func offlineConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Source:         XLSXSource,
		Store:          MemoryStore,
		XLSXPath:       filepath.Join(t.TempDir(), "budget.xlsx"),
		SQLiteDBPath:   filepath.Join(t.TempDir(), "bms.db"),
		JournalEnabled: true,
	}
}

func TestCreateOfflineBackends(t *testing.T) {
	b, err := NewFactory(log.Discard()).Create(context.Background(), offlineConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.IsType(t, &xlsx.Reader{}, b.Source)
	assert.IsType(t, &memstore.Store{}, b.Store)
	require.NotNil(t, b.Repo)
	assert.NotNil(t, b.Journal())
	assert.Nil(t, b.AMQP)
	assert.Nil(t, b.Notifier)

	_, err = b.Repo.ListRuns(context.Background(), 5)
	assert.NoError(t, err)
}

func TestCreateSQLiteStoreSharesDatabase(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Store = SQLiteStore

	b, err := NewFactory(nil).Create(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	repo, ok := b.Store.(*storage.SQLiteRepository)
	require.True(t, ok)
	assert.Same(t, b.Repo, repo)
}

func TestJournalDisabled(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.JournalEnabled = false

	b, err := NewFactory(nil).Create(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, b.Repo)
	assert.Nil(t, b.Journal(), "disabled journal must be a nil interface")
	assert.NoError(t, b.Close())
}

func TestCreateNotionStoreAndSlack(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.JournalEnabled = false
	cfg.Store = NotionStore
	cfg.NotionAPIKey = "secret"
	cfg.NotionDatabaseID = "db-1"
	cfg.RemoteTimeout = 5 * time.Second
	cfg.SlackWebhookURL = "https://hooks.slack.com/services/T/B/X"

	b, err := NewFactory(nil).Create(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &notion.Store{}, b.Store)
	multi, ok := b.Notifier.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 1)
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	tests := map[string]func(*Config){
		"unknown source":     func(c *Config) { c.Source = "csv" },
		"unknown store":      func(c *Config) { c.Store = "postgres" },
		"workbook missing":   func(c *Config) { c.XLSXPath = "" },
		"notion without key": func(c *Config) { c.Store = NotionStore },
		"sheets without creds": func(c *Config) {
			c.Source = SheetsSource
			c.GoogleSpreadsheetID = "sheet"
		},
		"journal without path": func(c *Config) { c.SQLiteDBPath = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := offlineConfig(t)
			mutate(&cfg)
			_, err := f.Create(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		SourceBackend:   config.SourceXLSX,
		SourceXLSXPath:  "budget.xlsx",
		StoreBackend:    config.StoreMemory,
		SQLiteDBPath:    "bms.db",
		JournalEnabled:  true,
		AMQPURL:         "amqp://localhost",
		AMQPExchange:    "bms",
		AMQPQueue:       "sync.requested",
		SlackWebhookURL: "https://hooks.slack.com/x",
	}
	cfg, err := FromAppConfig(app, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, XLSXSource, cfg.Source)
	assert.Equal(t, MemoryStore, cfg.Store)
	assert.Equal(t, "budget.xlsx", cfg.XLSXPath)
	assert.Equal(t, "sync.requested", cfg.AMQPQueue)
	assert.Equal(t, time.UTC, cfg.Location)

	_, err = FromAppConfig(nil, time.UTC)
	assert.Error(t, err)
}

func TestTypeValidity(t *testing.T) {
	assert.True(t, SheetsSource.IsValid())
	assert.False(t, SourceType("").IsValid())
	assert.True(t, MemoryStore.IsValid())
	assert.False(t, StoreType("sheets").IsValid())
	assert.Equal(t, "notion", NotionStore.String())
}
