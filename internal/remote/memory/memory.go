// Package memory is a map-backed remote store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"bms/internal/remote"
)

// Store keeps entries in insertion order. KeepSyncKeys controls whether
// sync keys are persisted, which lets tests exercise both matching modes.
type Store struct {
	mu           sync.Mutex
	order        []string
	entries      map[string]remote.Entry
	nextID       int
	KeepSyncKeys bool

	failQuery  map[int]error // by zero-based page number
	failCreate map[string]error
	failUpdate map[string]error
	calls      Calls
}

// Calls counts operations seen by the store.
type Calls struct {
	Query  int
	Create int
	Update int
}

var _ remote.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:      make(map[string]remote.Entry),
		KeepSyncKeys: true,
		failQuery:    make(map[int]error),
		failCreate:   make(map[string]error),
		failUpdate:   make(map[string]error),
	}
}

// Seed inserts entries as they are, generating ids for empty ones.
func (s *Store) Seed(entries ...remote.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = s.newID()
		}
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		s.entries[e.ID] = e
	}
}

// FailQueryPage makes the given zero-based page fail with err.
func (s *Store) FailQueryPage(page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQuery[page] = err
}

// FailCreate makes creates of itemName fail with err.
func (s *Store) FailCreate(itemName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate[itemName] = err
}

// FailUpdate makes updates of entry id fail with err.
func (s *Store) FailUpdate(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate[id] = err
}

// Entries returns a snapshot in insertion order.
func (s *Store) Entries() []remote.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Get returns the entry with id.
func (s *Store) Get(id string) (remote.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Calls returns the operation counters.
func (s *Store) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// QueryPage uses the decimal offset of the next entry as cursor.
func (s *Store) QueryPage(ctx context.Context, pageSize int, cursor string) (remote.Page, error) {
	if err := ctx.Err(); err != nil {
		return remote.Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Query++

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return remote.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, remote.ErrRejected)
		}
		offset = n
	}
	if pageSize <= 0 {
		pageSize = remote.DefaultPageSize
	}
	if err, ok := s.failQuery[offset/pageSize]; ok {
		return remote.Page{}, err
	}

	end := min(offset+pageSize, len(s.order))
	var page remote.Page
	for _, id := range s.order[min(offset, end):end] {
		page.Entries = append(page.Entries, s.entries[id])
	}
	if end < len(s.order) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Store) Create(ctx context.Context, props remote.Properties) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Create++

	if err, ok := s.failCreate[props.ItemName]; ok {
		return "", err
	}
	if strings.TrimSpace(props.ItemName) == "" {
		return "", fmt.Errorf("empty title: %w", remote.ErrRejected)
	}
	if !s.KeepSyncKeys {
		props.SyncKey = ""
	}
	id := s.newID()
	s.order = append(s.order, id)
	s.entries[id] = remote.Entry{ID: id, Properties: props}
	return id, nil
}

// Update replaces the stored properties. An empty incoming category keeps
// the stored one.
func (s *Store) Update(ctx context.Context, id string, props remote.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Update++

	if err, ok := s.failUpdate[id]; ok {
		return err
	}
	cur, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("entry %s not found: %w", id, remote.ErrRejected)
	}
	if props.Category == "" {
		props.Category = cur.Category
	}
	if !s.KeepSyncKeys {
		props.SyncKey = ""
	}
	s.entries[id] = remote.Entry{ID: id, Properties: props}
	return nil
}

func (s *Store) newID() string {
	s.nextID++
	return fmt.Sprintf("mem-%d", s.nextID)
}
