package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxSQLVars is the maximum bind variables per IN clause to stay
// within SQLite's default SQLITE_MAX_VARIABLE_NUMBER (999).
const maxSQLVars = 500

// queryChunked executes a callback for each chunk of IDs,
// splitting at maxSQLVars to avoid SQLite bind-variable limits.
func queryChunked(ids []string, fn func(chunk []string) error) error {
	for i := 0; i < len(ids); i += maxSQLVars {
		end := min(i+maxSQLVars, len(ids))
		if err := fn(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// UpsertUser inserts or updates a user record.
func (db *DB) UpsertUser(u User) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO users
			(id, display_name, avatar_url, timezone)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				display_name = excluded.display_name,
				avatar_url = excluded.avatar_url,
				timezone = excluded.timezone`,
			u.ID, u.DisplayName, u.AvatarURL, u.Timezone,
		)
		if err != nil {
			return fmt.Errorf("upserting user %s: %w", u.ID, err)
		}
		return nil
	})
}

// UsersByID fetches user records for the given IDs, preserving
// the input order. IDs with no user record are omitted.
func (db *DB) UsersByID(
	ctx context.Context, ids []string,
) ([]User, error) {
	byID := make(map[string]User, len(ids))
	err := queryChunked(ids, func(chunk []string) error {
		ph, args := inPlaceholders(chunk)
		query := `SELECT id, display_name, avatar_url, timezone
			FROM users WHERE id IN ` + ph

		rows, err := db.reader.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u User
			if err := rows.Scan(
				&u.ID, &u.DisplayName, &u.AvatarURL, &u.Timezone,
			); err != nil {
				return fmt.Errorf("scanning user: %w", err)
			}
			byID[u.ID] = u
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// UserLocation resolves a user's configured timezone. Unknown
// users, blank names, and unparseable names resolve to the
// store's default location.
func (db *DB) UserLocation(
	ctx context.Context, userID string,
) (*time.Location, error) {
	var tz string
	err := db.reader.QueryRowContext(ctx,
		`SELECT timezone FROM users WHERE id = ?`, userID,
	).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return db.defaultLocation(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user timezone: %w", err)
	}
	if tz == "" {
		return db.defaultLocation(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return db.defaultLocation(), nil
	}
	return loc, nil
}

// SetProjectMapping attaches a label and repo URL to a project
// key for one user.
func (db *DB) SetProjectMapping(
	userID string, m ProjectMapping,
) error {
	return db.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO project_mappings
			(user_id, project, label, repo_url)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, project) DO UPDATE SET
				label = excluded.label,
				repo_url = excluded.repo_url`,
			userID, m.Project, m.Label, m.RepoURL,
		)
		if err != nil {
			return fmt.Errorf("upserting project mapping: %w", err)
		}
		return nil
	})
}

// ProjectMappings returns all project label/repo mappings for a
// user.
func (db *DB) ProjectMappings(
	ctx context.Context, userID string,
) ([]ProjectMapping, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT project, label, repo_url FROM project_mappings
		 WHERE user_id = ? ORDER BY project`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying project mappings: %w", err)
	}
	defer rows.Close()

	var out []ProjectMapping
	for rows.Next() {
		var m ProjectMapping
		if err := rows.Scan(&m.Project, &m.Label, &m.RepoURL); err != nil {
			return nil, fmt.Errorf("scanning project mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project mappings: %w", err)
	}
	return out, nil
}
