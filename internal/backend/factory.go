package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bms/internal/amqp"
	"bms/internal/log"
	"bms/internal/notify"
	"bms/internal/remote"
	memstore "bms/internal/remote/memory"
	"bms/internal/remote/notion"
	"bms/internal/sheets"
	gsheet "bms/internal/sheets/google"
	"bms/internal/sheets/xlsx"
	"bms/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// Create builds every adapter named by config. On error, anything already
// opened is closed again.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (_ *Backends, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backends{}
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	if config.needsSQLite() {
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		closers = append(closers, repo.Close)
		if config.JournalEnabled {
			b.Repo = repo
		}
		if config.Store == SQLiteStore {
			b.Store = repo
		}
	}

	if b.Source, err = f.createSource(ctx, config); err != nil {
		return nil, err
	}

	if b.Store == nil {
		if b.Store, err = f.createStore(config); err != nil {
			return nil, err
		}
	}

	var notifiers notify.Multi
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without broker", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			b.AMQP = client
			closers = append(closers, client.Close)
			notifiers = append(notifiers, notify.NewAMQP(client))
		}
	}
	if config.SlackWebhookURL != "" {
		opts := notify.SlackOptions{
			DashboardURL: config.DashboardURL,
			Location:     config.Location,
		}
		if config.Store == NotionStore {
			opts.DatabaseID = config.NotionDatabaseID
		}
		notifiers = append(notifiers, notify.NewSlack(config.SlackWebhookURL, opts))
	}
	if len(notifiers) > 0 {
		b.Notifier = notifiers
	}

	b.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backends",
		"source", config.Source,
		"store", config.Store,
		"journal", b.Repo != nil,
		"amqp", b.AMQP != nil,
		"notifiers", len(notifiers))
	return b, nil
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config) (sheets.GridReader, error) {
	switch config.Source {
	case SheetsSource:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			Range:           config.GoogleSheetRange,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	case XLSXSource:
		return xlsx.New(config.XLSXPath, config.XLSXSheet), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Source)
	}
}

func (f *DefaultFactory) createStore(config Config) (remote.Store, error) {
	switch config.Store {
	case NotionStore:
		schema := notion.DefaultSchema()
		schema.SyncKey = config.NotionSyncKeyProperty
		client := &http.Client{Timeout: config.RemoteTimeout}
		return notion.New(config.NotionAPIKey, config.NotionDatabaseID, schema, client), nil
	case MemoryStore:
		f.logger.Warn("Using in-memory store, entries are lost on exit")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}
}
