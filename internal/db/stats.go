package db

import (
	"context"
	"fmt"
)

// Stats holds store-wide counts.
type Stats struct {
	HeartbeatCount int `json:"heartbeat_count"`
	UserCount      int `json:"user_count"`
	ProjectCount   int `json:"project_count"`
	LanguageCount  int `json:"language_count"`
}

// GetStats returns store-wide counts from the covering indexes.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM heartbeats),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(DISTINCT project) FROM heartbeats
			 WHERE project != ''),
			(SELECT COUNT(DISTINCT language) FROM heartbeats
			 WHERE language != '')`

	var s Stats
	err := db.reader.QueryRowContext(ctx, query).Scan(
		&s.HeartbeatCount,
		&s.UserCount,
		&s.ProjectCount,
		&s.LanguageCount,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	return s, nil
}
