package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/roach88/threadpost/internal/content"
)

// PostgresConfig holds connection pool settings for OpenPostgres.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns pool defaults sized for a short cron run.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresStore is the item repository over the hosted content_posts table.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

// OpenPostgres connects to Postgres and verifies the connection.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, opts ...Option) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewPostgresStore(db, opts...), nil
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostgresStore{db: db, opts: o}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const postColumns = `id, platform, COALESCE(title, ''), status, scheduled_date, parent_post_id,
	thread_position, COALESCE(caption, ''), mentions, hashtags, platform_id, platform_url,
	posted_at, COALESCE(notes, '')`

// ListDue returns scheduled posts that are due at now, ordered like Store.ListDue.
func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]content.Item, error) {
	query := `
		SELECT ` + postColumns + `
		FROM content_posts
		WHERE status = $1 AND platform = $2
		  AND (scheduled_date IS NULL OR scheduled_date <= $3)
		ORDER BY (parent_post_id IS NOT NULL) ASC,
		         COALESCE(thread_position, 0) ASC,
		         scheduled_date ASC NULLS FIRST,
		         created_at ASC,
		         id ASC`
	args := []any{string(content.StatusScheduled), s.opts.platform, now.UTC()}
	if s.opts.batchSize > 0 {
		query += ` LIMIT $4`
		args = append(args, s.opts.batchSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due posts: %w", err)
	}
	defer rows.Close()

	items := []content.Item{}
	for rows.Next() {
		it, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

// ParentState returns the status and platform id of a post.
func (s *PostgresStore) ParentState(ctx context.Context, id string) (content.ParentState, error) {
	var (
		status     string
		platformID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, platform_id FROM content_posts WHERE id = $1`, id,
	).Scan(&status, &platformID)
	if errors.Is(err, sql.ErrNoRows) {
		return content.ParentState{}, content.ErrNotFound
	}
	if err != nil {
		return content.ParentState{}, fmt.Errorf("query parent %s: %w", id, err)
	}
	return content.ParentState{
		Status:     content.Status(status),
		ExternalID: platformID.String,
	}, nil
}

// WriteResult records the terminal outcome; only scheduled rows are updated.
func (s *PostgresStore) WriteResult(ctx context.Context, id string, outcome content.Outcome) error {
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
			UPDATE content_posts
			SET status = $1, platform_id = $2, platform_url = $3, posted_at = $4, updated_at = $5
			WHERE id = $6 AND status = $7`,
			string(outcome.Status),
			outcome.ExternalID,
			toNullString(&outcome.ExternalURL),
			outcome.PostedAt.UTC(),
			outcome.UpdatedAt.UTC(),
			id,
			string(content.StatusScheduled),
		)
	default:
		res, err = s.db.ExecContext(ctx, `
			UPDATE content_posts
			SET status = $1, notes = $2, updated_at = $3
			WHERE id = $4 AND status = $5`,
			string(outcome.Status),
			outcome.Note,
			outcome.UpdatedAt.UTC(),
			id,
			string(content.StatusScheduled),
		)
	}
	if err != nil {
		return fmt.Errorf("write result %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write result %s: rows affected: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.ParentState(ctx, id); err != nil {
		return fmt.Errorf("write result %s: %w", id, err)
	}
	return fmt.Errorf("write result %s: %w", id, content.ErrNotScheduled)
}

func scanPost(r rowScanner) (content.Item, error) {
	var (
		it                      content.Item
		status                  string
		scheduledAt, postedAt   sql.NullTime
		parentID                sql.NullString
		position                sql.NullInt64
		mentions, hashtags      sql.NullString
		platformID, platformURL sql.NullString
	)
	err := r.Scan(
		&it.ID, &it.Platform, &it.Title, &status, &scheduledAt, &parentID,
		&position, &it.Body, &mentions, &hashtags, &platformID, &platformURL,
		&postedAt, &it.Notes,
	)
	if err != nil {
		return content.Item{}, err
	}

	it.Status = content.Status(status)
	it.ScheduledAt = fromNullTime(scheduledAt)
	it.ParentID = fromNullString(parentID)
	it.ThreadPosition = fromNullInt(position)
	it.Mentions = content.RawList(mentions.String)
	it.Tags = content.RawList(hashtags.String)
	it.ExternalID = platformID.String
	it.ExternalURL = platformURL.String
	it.PostedAt = fromNullTime(postedAt)
	return it, nil
}
