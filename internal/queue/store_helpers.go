package queue

import (
	"database/sql"
	"encoding/json"
	"time"
)

const itemColumns = "id, title, body, author, source_collection, ingested_at, audio_ready, subtitles_ready, video_ready, published, publish_targets, failure_count, last_error, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item           Item
		ingestedRaw    string
		audioReady     int64
		subtitlesReady int64
		videoReady     int64
		published      int64
		targetsRaw     sql.NullString
		lastError      sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&item.ID,
		&item.Title,
		&item.Body,
		&item.Author,
		&item.SourceCollection,
		&ingestedRaw,
		&audioReady,
		&subtitlesReady,
		&videoReady,
		&published,
		&targetsRaw,
		&item.FailureCount,
		&lastError,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item.AudioReady = audioReady != 0
	item.SubtitlesReady = subtitlesReady != 0
	item.VideoReady = videoReady != 0
	item.Published = published != 0
	item.LastError = lastError.String
	if targetsRaw.Valid && targetsRaw.String != "" {
		if err := json.Unmarshal([]byte(targetsRaw.String), &item.PublishTargets); err != nil {
			return nil, err
		}
	}
	if ingested, err := parseTimeString(ingestedRaw); err == nil {
		item.IngestedAt = ingested
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func encodeTargets(targets []string) (string, error) {
	if len(targets) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(targets)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, sql.ErrNoRows
	}
	return time.Parse(time.RFC3339Nano, value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
