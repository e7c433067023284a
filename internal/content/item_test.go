package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestItemDefaults(t *testing.T) {
	it := Item{ID: "a", Status: StatusScheduled}

	assert.False(t, it.HasParent())
	assert.Equal(t, "", it.Parent())
	assert.Equal(t, 0, it.Position())
	assert.Equal(t, "Untitled", it.Label())

	it.ParentID = ptr("")
	assert.False(t, it.HasParent(), "empty parent id is treated as absent")

	it.ParentID = ptr("p")
	it.ThreadPosition = ptr(3)
	assert.True(t, it.HasParent())
	assert.Equal(t, "p", it.Parent())
	assert.Equal(t, 3, it.Position())
}

func TestItemIsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"no schedule", Item{Status: StatusScheduled}, true},
		{"past", Item{Status: StatusScheduled, ScheduledAt: ptr(now.Add(-time.Minute))}, true},
		{"exactly now", Item{Status: StatusScheduled, ScheduledAt: ptr(now)}, true},
		{"future", Item{Status: StatusScheduled, ScheduledAt: ptr(now.Add(time.Second))}, false},
		{"posted", Item{Status: StatusPosted}, false},
		{"failed", Item{Status: StatusFailed}, false},
		{"draft", Item{Status: Status("draft")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.IsDue(now))
		})
	}
}

func TestParentStateReady(t *testing.T) {
	assert.True(t, ParentState{Status: StatusPosted, ExternalID: "1"}.Ready())
	assert.False(t, ParentState{Status: StatusPosted}.Ready())
	assert.False(t, ParentState{Status: StatusScheduled, ExternalID: "1"}.Ready())
	assert.False(t, ParentState{Status: StatusFailed}.Ready())
}

func TestOutcomeValidate(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	posted := Posted(Receipt{ExternalID: "99", ExternalURL: "https://x.com/a/status/99"}, at)
	require.NoError(t, posted.Validate())
	assert.Equal(t, StatusPosted, posted.Status)
	assert.Equal(t, at, posted.PostedAt)

	require.Error(t, Posted(Receipt{}, at).Validate())

	failed := Failed("Auto-post failed: boom", at)
	require.NoError(t, failed.Validate())
	assert.Empty(t, failed.ExternalID)

	bad := failed
	bad.ExternalID = "1"
	require.Error(t, bad.Validate())

	require.Error(t, Outcome{Status: StatusScheduled}.Validate())
}
