package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get fetches an item by fingerprint. A missing item yields nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindByPrefix returns items whose fingerprint starts with prefix.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) ([]*Item, error) {
	if prefix == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items WHERE substr(id, 1, ?) = ? ORDER BY ingested_at, id`,
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("find by prefix: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Put inserts or overwrites the item in a single statement.
func (s *Store) Put(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	targets, err := encodeTargets(item.PublishTargets)
	if err != nil {
		return fmt.Errorf("encode publish targets: %w", err)
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             body = excluded.body,
             author = excluded.author,
             source_collection = excluded.source_collection,
             ingested_at = excluded.ingested_at,
             audio_ready = excluded.audio_ready,
             subtitles_ready = excluded.subtitles_ready,
             video_ready = excluded.video_ready,
             published = excluded.published,
             publish_targets = excluded.publish_targets,
             failure_count = excluded.failure_count,
             last_error = excluded.last_error,
             updated_at = excluded.updated_at`,
		itemArgs(item, targets)...,
	); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Insert writes the item only when its fingerprint is not stored yet and
// reports whether a row was written. Existing records are left untouched.
func (s *Store) Insert(ctx context.Context, item *Item) (bool, error) {
	if item == nil {
		return false, errors.New("item is nil")
	}
	if err := item.Validate(); err != nil {
		return false, err
	}
	targets, err := encodeTargets(item.PublishTargets)
	if err != nil {
		return false, fmt.Errorf("encode publish targets: %w", err)
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		itemArgs(item, targets)...,
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func itemArgs(item *Item, targets string) []any {
	return []any{
		item.ID,
		item.Title,
		item.Body,
		item.Author,
		item.SourceCollection,
		formatTime(item.IngestedAt),
		boolToInt(item.AudioReady),
		boolToInt(item.SubtitlesReady),
		boolToInt(item.VideoReady),
		boolToInt(item.Published),
		targets,
		item.FailureCount,
		nullableString(item.LastError),
		formatTime(item.UpdatedAt),
	}
}

// Delete removes an item by fingerprint and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns every item ordered by ingestion time. The rows are read inside
// one transaction, so the result is a consistent snapshot even while other
// workers write.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin list tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY ingested_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Clear removes all items.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM items`)
	if err != nil {
		return 0, fmt.Errorf("clear items: %w", err)
	}
	return res.RowsAffected()
}

// ClearPublished removes items that reached the publish stage.
func (s *Store) ClearPublished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM items WHERE published = 1`)
	if err != nil {
		return 0, fmt.Errorf("clear published: %w", err)
	}
	return res.RowsAffected()
}
