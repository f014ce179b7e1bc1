package remote

import (
	"context"
	"strings"

	"bms/internal/core"
	"bms/internal/log"
)

// DefaultPageSize is the largest page most stores accept.
const DefaultPageSize = 100

// Index maps budget lines to remote ids for the duration of one run.
type Index struct {
	byKey  map[string]string
	byName map[string][]string
	// claimed remembers name-matched ids already handed out.
	claimed map[string]struct{}
	size    int
	// Partial is set when a page fetch failed and the index stops short.
	Partial bool
	Err     error
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byKey:   make(map[string]string),
		byName:  make(map[string][]string),
		claimed: make(map[string]struct{}),
	}
}

// Add indexes one entry. Entries with an empty title are ignored. Entries
// carrying a sync key are only reachable by that key.
func (ix *Index) Add(e Entry) {
	name := strings.TrimSpace(e.ItemName)
	if name == "" || e.ID == "" {
		return
	}
	ix.size++
	if e.SyncKey != "" {
		if _, dup := ix.byKey[e.SyncKey]; !dup {
			ix.byKey[e.SyncKey] = e.ID
		}
		return
	}
	ix.byName[name] = append(ix.byName[name], e.ID)
}

// Len is the number of indexed entries.
func (ix *Index) Len() int { return ix.size }

// Lookup finds the remote id for r: by stable key first, then by item name
// among key-less entries. A name match is handed out once, so two records
// with the same name never update the same entry.
func (ix *Index) Lookup(r core.Record) (string, bool) {
	if id, ok := ix.byKey[r.StableKey()]; ok {
		return id, true
	}
	for _, id := range ix.byName[strings.TrimSpace(r.ItemName)] {
		if _, taken := ix.claimed[id]; taken {
			continue
		}
		ix.claimed[id] = struct{}{}
		return id, true
	}
	return "", false
}

// BuildIndex pages through the whole store. A failed page stops the walk
// and the index built so far is returned with Partial set; no retry.
func BuildIndex(ctx context.Context, store Store, pageSize int, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentIndex)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	ix := NewIndex()
	err := Walk(ctx, store, pageSize, func(e Entry) { ix.Add(e) })
	if err != nil {
		ix.Partial = true
		ix.Err = err
		logger.WarnContext(ctx, "Remote index is partial",
			log.FieldError, err.Error(),
			log.FieldRecords, ix.Len())
		return ix
	}
	logger.InfoContext(ctx, "Remote index built", log.FieldRecords, ix.Len())
	return ix
}

// Walk calls fn for every entry in the store, page by page. It returns the
// first page error; entries from earlier pages have already been visited.
func Walk(ctx context.Context, store Store, pageSize int, fn func(Entry)) error {
	cursor := ""
	for {
		page, err := store.QueryPage(ctx, pageSize, cursor)
		if err != nil {
			return err
		}
		for _, e := range page.Entries {
			fn(e)
		}
		if !page.HasMore || page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}
