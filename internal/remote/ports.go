// Package remote defines the contract of the structured record store that
// budget lines are reconciled into, and the per-run index over it.
package remote

import (
	"context"
	"errors"
	"net"
	"syscall"

	"bms/internal/core"
)

// ErrRejected marks a mutation the store refused for good (validation,
// permissions, unknown property). Callers must not retry it.
var ErrRejected = errors.New("remote store rejected request")

// ErrNotApplied marks a failure known to have happened before the store
// applied the mutation, such as rate limiting.
var ErrNotApplied = errors.New("remote store did not apply request")

// NotApplied reports whether err leaves the store untouched for certain:
// errors marked with ErrNotApplied and connections that were never
// established. Only such failures make a create safe to repeat.
func NotApplied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotApplied) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

type (
	// Properties is the payload of a create or update. SyncKey is empty
	// when the caller does not track stable keys.
	Properties struct {
		core.Record
		SyncKey string
	}

	// Entry is one stored record as returned by a query.
	Entry struct {
		ID string
		Properties
	}

	// Page is one slice of a paginated query.
	Page struct {
		Entries    []Entry
		HasMore    bool
		NextCursor string
	}

	// Store is the remote record store. An empty cursor requests the
	// first page.
	Store interface {
		QueryPage(ctx context.Context, pageSize int, cursor string) (Page, error)
		Create(ctx context.Context, props Properties) (id string, err error)
		Update(ctx context.Context, id string, props Properties) error
	}
)

// PropertiesFor builds the mutation payload for a record, keyed by its
// stable content key.
func PropertiesFor(r core.Record) Properties {
	return Properties{Record: r, SyncKey: r.StableKey()}
}
