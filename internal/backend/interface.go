// Package backend assembles the adapters a run needs from configuration:
// the sheet source, the remote store, the run journal and the notifiers.
package backend

import (
	"context"

	"bms/internal/amqp"
	"bms/internal/notify"
	"bms/internal/remote"
	"bms/internal/services"
	"bms/internal/sheets"
	"bms/internal/storage"
)

// CleanupFunc releases resources held by a Backends value.
type CleanupFunc func() error

// Backends is everything a sync, export or feed process talks to.
type Backends struct {
	Source sheets.GridReader
	Store  remote.Store
	// Repo is the sqlite database, nil when neither the journal nor the
	// sqlite store is enabled.
	Repo *storage.SQLiteRepository
	// AMQP is nil when no broker is configured or it was unreachable.
	AMQP     *amqp.Client
	Notifier notify.Notifier
	Cleanup  CleanupFunc
}

// Journal returns the run journal or a nil interface when disabled.
func (b *Backends) Journal() services.Journal {
	if b.Repo == nil {
		return nil
	}
	return b.Repo
}

// Close runs Cleanup if set.
func (b *Backends) Close() error {
	if b == nil || b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Backends, error)
}

// SourceType selects the sheet reader.
type SourceType string

const (
	SheetsSource SourceType = "sheets"
	XLSXSource   SourceType = "xlsx"
)

func (t SourceType) String() string {
	return string(t)
}

// IsValid returns true if the source type is known
func (t SourceType) IsValid() bool {
	switch t {
	case SheetsSource, XLSXSource:
		return true
	default:
		return false
	}
}

// StoreType selects the remote store.
type StoreType string

const (
	NotionStore StoreType = "notion"
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (t StoreType) String() string {
	return string(t)
}

// IsValid returns true if the store type is known
func (t StoreType) IsValid() bool {
	switch t {
	case NotionStore, SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}
