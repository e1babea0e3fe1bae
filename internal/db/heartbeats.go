package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// InsertHeartbeats appends a batch of heartbeats. Duplicates
// (same user, time, and entity) are ignored, so re-ingesting a
// spool file is idempotent. Returns the number of rows actually
// inserted.
func (db *DB) InsertHeartbeats(hbs []Heartbeat) (int, error) {
	var inserted int
	err := db.Update(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO heartbeats
			(user_id, time, project, language, editor,
			 operating_system, category, entity, source_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, hb := range hbs {
			source := hb.SourceType
			if source == "" {
				source = SourceDirectEntry
			}
			res, err := stmt.Exec(
				hb.UserID, hb.Time, hb.Project, hb.Language,
				hb.Editor, hb.OperatingSystem, hb.Category,
				hb.Entity, string(source),
			)
			if err != nil {
				return fmt.Errorf("inserting heartbeat: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// TotalDuration returns the summed duration in seconds and the
// heartbeat count for the filtered view.
func (db *DB) TotalDuration(
	ctx context.Context, f HeartbeatFilter,
) (int64, int, error) {
	where, args := f.buildWhere()
	query := `SELECT time FROM heartbeats WHERE ` + where +
		` ORDER BY time ASC`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("querying total duration: %w", err)
	}
	defer rows.Close()

	var times []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return 0, 0, fmt.Errorf("scanning heartbeat time: %w", err)
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterating heartbeat times: %w", err)
	}

	cutoff := db.IdleCutoff().Seconds()
	return sumDurations(times, cutoff), len(times), nil
}

// GroupedDuration returns per-value summed durations for the
// filtered view, grouped by the given dimension. Gaps are walked
// over the whole ordered view and each counted gap is credited to
// the value of its earlier ping, so the per-value sums always add
// up to TotalDuration of the same view, even when values
// interleave in time. Results are sorted descending by seconds;
// ties break ascending by value so repeated calls are
// deterministic. Values are the raw stored labels; an absent
// label groups under the empty string.
func (db *DB) GroupedDuration(
	ctx context.Context, f HeartbeatFilter, dim Dimension,
) ([]ValueDuration, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	where, args := f.buildWhere()
	query := `SELECT ` + col + `, time FROM heartbeats WHERE ` +
		where + ` ORDER BY time ASC`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf(
			"querying grouped duration by %s: %w", dim, err,
		)
	}
	defer rows.Close()

	var labels []string
	var times []float64
	for rows.Next() {
		var value string
		var t float64
		if err := rows.Scan(&value, &t); err != nil {
			return nil, fmt.Errorf("scanning grouped row: %w", err)
		}
		labels = append(labels, value)
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grouped rows: %w", err)
	}

	cutoff := db.IdleCutoff().Seconds()
	groups := attributeDurations(labels, times, cutoff)
	out := make([]ValueDuration, 0, len(groups))
	for value, secs := range groups {
		out = append(out, ValueDuration{Value: value, Seconds: secs})
	}
	sortGrouped(out)
	return out, nil
}

// GroupedCount returns per-value heartbeat counts for the
// filtered view, sorted descending by count with ascending-value
// tie-break.
func (db *DB) GroupedCount(
	ctx context.Context, f HeartbeatFilter, dim Dimension,
) ([]ValueCount, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	where, args := f.buildWhere()
	query := `SELECT ` + col + `, COUNT(*) FROM heartbeats
		WHERE ` + where + ` GROUP BY ` + col

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf(
			"querying grouped count by %s: %w", dim, err,
		)
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		out = append(out, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating count rows: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// DailyDurations returns summed duration per local calendar day
// for the filtered view, keyed by YYYY-MM-DD in loc. Gaps never
// span day boundaries because each day's pings are summed
// independently.
func (db *DB) DailyDurations(
	ctx context.Context, f HeartbeatFilter, loc *time.Location,
) (map[string]int64, error) {
	where, args := f.buildWhere()
	query := `SELECT time FROM heartbeats WHERE ` + where +
		` ORDER BY time ASC`

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying daily durations: %w", err)
	}
	defer rows.Close()

	days := make(map[string][]float64)
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning heartbeat time: %w", err)
		}
		sec := int64(t)
		nsec := int64((t - float64(sec)) * 1e9)
		date := time.Unix(sec, nsec).In(loc).Format("2006-01-02")
		days[date] = append(days[date], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily rows: %w", err)
	}

	cutoff := db.IdleCutoff().Seconds()
	out := make(map[string]int64, len(days))
	for date, times := range days {
		out[date] = sumDurations(times, cutoff)
	}
	return out, nil
}

// DistinctUserIDs returns the IDs of users with at least one
// heartbeat of the given source type after since, ordered by
// their earliest qualifying heartbeat.
func (db *DB) DistinctUserIDs(
	ctx context.Context, since time.Time, source SourceType,
) ([]string, error) {
	const query = `SELECT user_id FROM heartbeats
		WHERE time > ? AND source_type = ?
		GROUP BY user_id ORDER BY MIN(time) ASC`

	rows, err := db.reader.QueryContext(
		ctx, query, unixSeconds(since), string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("querying distinct users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user ids: %w", err)
	}
	return ids, nil
}

// sortGrouped orders grouped durations descending by seconds,
// ties ascending by value.
func sortGrouped(vds []ValueDuration) {
	sort.SliceStable(vds, func(i, j int) bool {
		if vds[i].Seconds != vds[j].Seconds {
			return vds[i].Seconds > vds[j].Seconds
		}
		return vds[i].Value < vds[j].Value
	})
}
