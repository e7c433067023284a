package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/threadpost/internal/content"
)

func TestWriteResult_Posted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertItem(ctx, scheduledItem("a", nil))
	require.NoError(t, err)

	at := testEpoch.Add(5 * time.Minute)
	receipt := content.Receipt{ExternalID: "1900", ExternalURL: "https://x.com/acme/status/1900"}
	require.NoError(t, s.WriteResult(ctx, "a", content.Posted(receipt, at)))

	got, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, content.StatusPosted, got.Status)
	assert.Equal(t, "1900", got.ExternalID)
	assert.Equal(t, receipt.ExternalURL, got.ExternalURL)
	require.NotNil(t, got.PostedAt)
	assert.True(t, at.Equal(*got.PostedAt))
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.Empty(t, got.Notes)

	st, err := s.ParentState(ctx, "a")
	require.NoError(t, err)
	assert.True(t, st.Ready())
}

func TestWriteResult_Failed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertItem(ctx, scheduledItem("a", nil))
	require.NoError(t, err)

	require.NoError(t, s.WriteResult(ctx, "a", content.Failed("Auto-post failed: 403 forbidden", testEpoch)))

	got, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, content.StatusFailed, got.Status)
	assert.Equal(t, "Auto-post failed: 403 forbidden", got.Notes)
	assert.Empty(t, got.ExternalID)
	assert.Nil(t, got.PostedAt)

	due, err := s.ListDue(ctx, testEpoch)
	require.NoError(t, err)
	assert.Empty(t, due, "failed items are never reselected")
}

func TestWriteResult_OnlyOnceFromScheduled(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertItem(ctx, scheduledItem("a", nil))
	require.NoError(t, err)

	first := content.Posted(content.Receipt{ExternalID: "1"}, testEpoch)
	require.NoError(t, s.WriteResult(ctx, "a", first))

	// An overlapping run that also published must not overwrite the record.
	second := content.Posted(content.Receipt{ExternalID: "2"}, testEpoch)
	err = s.WriteResult(ctx, "a", second)
	assert.ErrorIs(t, err, content.ErrNotScheduled)

	err = s.WriteResult(ctx, "a", content.Failed("late failure", testEpoch))
	assert.ErrorIs(t, err, content.ErrNotScheduled)

	got, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, content.StatusPosted, got.Status)
	assert.Equal(t, "1", got.ExternalID)
}

func TestWriteResult_UnknownItem(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteResult(context.Background(), "ghost", content.Failed("x", testEpoch))
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestWriteResult_RejectsInvalidOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertItem(ctx, scheduledItem("a", nil))
	require.NoError(t, err)

	err = s.WriteResult(ctx, "a", content.Posted(content.Receipt{}, testEpoch))
	require.Error(t, err)

	got, err := s.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
}
