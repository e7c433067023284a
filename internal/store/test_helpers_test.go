package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/threadpost/internal/content"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp dir with a fixed clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithClock(func() time.Time { return testEpoch })}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// scheduledItem creates a minimal scheduled item.
func scheduledItem(id string, at *time.Time) content.Item {
	return content.Item{
		ID:          id,
		Title:       "item " + id,
		Status:      content.StatusScheduled,
		ScheduledAt: at,
		Body:        "body " + id,
	}
}

// replyItem creates a scheduled reply to parent.
func replyItem(id, parent string, pos int) content.Item {
	it := scheduledItem(id, nil)
	it.ParentID = ptr(parent)
	it.ThreadPosition = ptr(pos)
	return it
}

func itemIDs(items []content.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
