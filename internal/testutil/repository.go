package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/threadpost/internal/content"
)

// Write is one recorded WriteResult call.
type Write struct {
	ID      string
	Outcome content.Outcome
}

// MemoryRepository is an in-memory item repository with error injection.
//
// It applies the same conditional write-back rule as the SQL stores: an
// outcome only lands while the item is still scheduled.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryRepository struct {
	mu    sync.Mutex
	order []string
	items map[string]content.Item

	// ListErr, if set, is returned by ListDue.
	ListErr error
	// ParentErr maps parent ids to errors returned by ParentState.
	ParentErr map[string]error
	// WriteErr maps item ids to errors returned by WriteResult.
	WriteErr map[string]error

	writes  []Write
	lookups []string
}

// NewMemoryRepository creates a repository holding items, in the given order.
func NewMemoryRepository(items ...content.Item) *MemoryRepository {
	r := &MemoryRepository{
		items:     make(map[string]content.Item),
		ParentErr: make(map[string]error),
		WriteErr:  make(map[string]error),
	}
	r.Add(items...)
	return r
}

// Add inserts or replaces items. New ids are appended to the list order.
func (r *MemoryRepository) Add(items ...content.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if _, ok := r.items[it.ID]; !ok {
			r.order = append(r.order, it.ID)
		}
		r.items[it.ID] = it
	}
}

// Item returns the current state of id.
func (r *MemoryRepository) Item(id string) (content.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	return it, ok
}

// Writes returns the WriteResult calls that were applied, in order.
func (r *MemoryRepository) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// ParentLookups returns the ids passed to ParentState, in order.
func (r *MemoryRepository) ParentLookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lookups...)
}

// ListDue implements the scheduler repository.
func (r *MemoryRepository) ListDue(ctx context.Context, now time.Time) ([]content.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	due := make([]content.Item, 0, len(r.order))
	for _, id := range r.order {
		if it := r.items[id]; it.IsDue(now) {
			due = append(due, it)
		}
	}
	return due, nil
}

// ParentState implements the scheduler repository.
func (r *MemoryRepository) ParentState(ctx context.Context, id string) (content.ParentState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, id)
	if err := r.ParentErr[id]; err != nil {
		return content.ParentState{}, err
	}
	it, ok := r.items[id]
	if !ok {
		return content.ParentState{}, content.ErrNotFound
	}
	return content.ParentState{Status: it.Status, ExternalID: it.ExternalID}, nil
}

// WriteResult implements the scheduler repository.
func (r *MemoryRepository) WriteResult(ctx context.Context, id string, outcome content.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.WriteErr[id]; err != nil {
		return err
	}
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("write result %s: %w", id, err)
	}
	it, ok := r.items[id]
	if !ok {
		return content.ErrNotFound
	}
	if it.Status != content.StatusScheduled {
		return content.ErrNotScheduled
	}

	it.Status = outcome.Status
	it.UpdatedAt = outcome.UpdatedAt
	if outcome.Status == content.StatusPosted {
		it.ExternalID = outcome.ExternalID
		it.ExternalURL = outcome.ExternalURL
		at := outcome.PostedAt
		it.PostedAt = &at
	} else {
		it.Notes = outcome.Note
	}
	r.items[id] = it
	r.writes = append(r.writes, Write{ID: id, Outcome: outcome})
	return nil
}
