package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of items grouped by derived status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT CASE
                   WHEN published = 1 THEN 'published'
                   WHEN video_ready = 1 THEN 'rendered'
                   WHEN subtitles_ready = 1 THEN 'subtitled'
                   WHEN audio_ready = 1 THEN 'narrated'
                   ELSE 'ingested'
               END AS status,
               COUNT(1)
        FROM items
        GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// FailingCount returns how many items carry at least one recorded failure.
func (s *Store) FailingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM items WHERE failure_count > 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failing items: %w", err)
	}
	return count, nil
}

var expectedColumns = strings.Split(strings.ReplaceAll(itemColumns, " ", ""), ",")

// CheckHealth returns diagnostic information about the item database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("item database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat item database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("item database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("item database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	fail := func(op string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.db.PingContext(connCtx); err != nil {
		return fail("ping item database", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		return fail("read schema version", err)
	}

	var tables int
	if err := s.db.QueryRowContext(connCtx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'items'",
	).Scan(&tables); err != nil {
		return fail("query table info", err)
	}
	health.TableExists = tables > 0

	if health.TableExists {
		rows, err := s.db.QueryContext(connCtx, "SELECT name FROM pragma_table_info('items')")
		if err != nil {
			return fail("table info", err)
		}
		present := make(map[string]struct{})
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fail("scan table info", err)
			}
			present[name] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fail("iterate table info", err)
		}
		for _, col := range expectedColumns {
			if _, ok := present[col]; !ok {
				health.MissingColumns = append(health.MissingColumns, col)
			}
		}

		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM items").Scan(&health.TotalItems); err != nil {
			return fail("count items", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
