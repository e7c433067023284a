package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/threadpost/internal/content"
)

const itemColumns = `id, platform, title, status, scheduled_at, parent_id, thread_position,
	body, mentions, tags, external_id, external_url, posted_at, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ListDue returns scheduled items that are due at now.
//
// Thread roots come before replies and lower thread positions first, so a
// batch cap never starves a parent behind its own replies. Remaining ties
// are broken by scheduled time, creation time and id.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]content.Item, error) {
	limit := -1
	if s.opts.batchSize > 0 {
		limit = s.opts.batchSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM content_items
		WHERE status = ? AND platform = ?
		  AND (scheduled_at IS NULL OR scheduled_at <= ?)
		ORDER BY (parent_id IS NOT NULL AND parent_id != '') ASC,
		         COALESCE(thread_position, 0) ASC,
		         COALESCE(scheduled_at, 0) ASC,
		         created_at ASC,
		         id COLLATE BINARY ASC
		LIMIT ?
	`, string(content.StatusScheduled), s.opts.platform, now.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	return collectItems(rows)
}

// ParentState returns the status and external id of an item.
// Returns content.ErrNotFound when the id does not exist.
func (s *Store) ParentState(ctx context.Context, id string) (content.ParentState, error) {
	var (
		status     string
		externalID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, external_id FROM content_items WHERE id = ?
	`, id).Scan(&status, &externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return content.ParentState{}, content.ErrNotFound
	}
	if err != nil {
		return content.ParentState{}, fmt.Errorf("query parent %s: %w", id, err)
	}
	return content.ParentState{
		Status:     content.Status(status),
		ExternalID: externalID.String,
	}, nil
}

// GetItem returns a single item by id.
// Returns content.ErrNotFound when the id does not exist.
func (s *Store) GetItem(ctx context.Context, id string) (content.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM content_items WHERE id = ?
	`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Item{}, content.ErrNotFound
	}
	if err != nil {
		return content.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// ListByStatus returns all items in a status, oldest first.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListByStatus(ctx context.Context, status content.Status) ([]content.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM content_items
		WHERE status = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query items by status: %w", err)
	}
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]content.Item, error) {
	defer rows.Close()

	items := []content.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func scanItem(r rowScanner) (content.Item, error) {
	var (
		it                      content.Item
		status                  string
		scheduledAt, postedAt   sql.NullInt64
		parentID                sql.NullString
		position                sql.NullInt64
		mentions, tags          sql.NullString
		externalID, externalURL sql.NullString
		notes                   sql.NullString
		createdAt, updatedAt    int64
	)
	err := r.Scan(
		&it.ID, &it.Platform, &it.Title, &status, &scheduledAt, &parentID, &position,
		&it.Body, &mentions, &tags, &externalID, &externalURL, &postedAt, &notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return content.Item{}, err
	}

	it.Status = content.Status(status)
	it.ScheduledAt = fromMillis(scheduledAt)
	it.ParentID = fromNullString(parentID)
	it.ThreadPosition = fromNullInt(position)
	it.Mentions = content.RawList(mentions.String)
	it.Tags = content.RawList(tags.String)
	it.ExternalID = externalID.String
	it.ExternalURL = externalURL.String
	it.PostedAt = fromMillis(postedAt)
	it.Notes = notes.String
	it.CreatedAt = time.UnixMilli(createdAt).UTC()
	it.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return it, nil
}
