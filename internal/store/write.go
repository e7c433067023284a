package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/threadpost/internal/content"
)

// InsertItem adds a new item and returns it as stored.
//
// A missing id gets a UUIDv7, a missing status becomes scheduled and a
// missing platform becomes the store's platform. CreatedAt and UpdatedAt
// are always stamped by the store clock.
func (s *Store) InsertItem(ctx context.Context, it content.Item) (content.Item, error) {
	if it.ID == "" {
		it.ID = uuid.Must(uuid.NewV7()).String()
	}
	if it.Status == "" {
		it.Status = content.StatusScheduled
	}
	if it.Platform == "" {
		it.Platform = s.opts.platform
	}
	now := s.opts.now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_items
		(id, platform, title, status, scheduled_at, parent_id, thread_position,
		 body, mentions, tags, external_id, external_url, posted_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.ID,
		it.Platform,
		it.Title,
		string(it.Status),
		toMillis(it.ScheduledAt),
		toNullString(it.ParentID),
		toNullInt(it.ThreadPosition),
		it.Body,
		toNullRaw(it.Mentions),
		toNullRaw(it.Tags),
		toNullString(&it.ExternalID),
		toNullString(&it.ExternalURL),
		toMillis(it.PostedAt),
		toNullString(&it.Notes),
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return content.Item{}, fmt.Errorf("insert item %s: %w", it.ID, err)
	}
	return it, nil
}

// WriteResult records the terminal outcome of a publish attempt.
//
// The update only applies while the row is still scheduled. If it is not,
// nothing changes and the error is content.ErrNotScheduled (or
// content.ErrNotFound for an unknown id).
func (s *Store) WriteResult(ctx context.Context, id string, outcome content.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("write result %s: %w", id, err)
	}

	var (
		res sql.Result
		err error
	)
	switch outcome.Status {
	case content.StatusPosted:
		res, err = s.db.ExecContext(ctx, `
			UPDATE content_items
			SET status = ?, external_id = ?, external_url = ?, posted_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`,
			string(outcome.Status),
			outcome.ExternalID,
			toNullString(&outcome.ExternalURL),
			outcome.PostedAt.UTC().UnixMilli(),
			outcome.UpdatedAt.UTC().UnixMilli(),
			id,
			string(content.StatusScheduled),
		)
	default:
		res, err = s.db.ExecContext(ctx, `
			UPDATE content_items
			SET status = ?, notes = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`,
			string(outcome.Status),
			outcome.Note,
			outcome.UpdatedAt.UTC().UnixMilli(),
			id,
			string(content.StatusScheduled),
		)
	}
	if err != nil {
		return fmt.Errorf("write result %s: %w", id, err)
	}

	return s.checkTransition(ctx, id, res)
}

// checkTransition turns a zero-row update into the matching sentinel.
func (s *Store) checkTransition(ctx context.Context, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write result %s: rows affected: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.ParentState(ctx, id); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return fmt.Errorf("write result %s: %w", id, content.ErrNotFound)
		}
		return fmt.Errorf("write result %s: %w", id, err)
	}
	return fmt.Errorf("write result %s: %w", id, content.ErrNotScheduled)
}
