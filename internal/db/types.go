package db

import "time"

// Dimension is a heartbeat attribute usable for grouping and
// filtering.
type Dimension string

const (
	DimProject         Dimension = "project"
	DimLanguage        Dimension = "language"
	DimEditor          Dimension = "editor"
	DimOperatingSystem Dimension = "operating_system"
	DimCategory        Dimension = "category"
)

// Dimensions returns all groupable dimensions in their canonical
// order. The order is part of cache-key identity, so it must stay
// stable.
func Dimensions() []Dimension {
	return []Dimension{
		DimProject,
		DimLanguage,
		DimEditor,
		DimOperatingSystem,
		DimCategory,
	}
}

// dimensionColumns maps dimensions to their backing columns.
// Grouping queries only ever interpolate column names taken from
// this map, never caller input.
var dimensionColumns = map[Dimension]string{
	DimProject:         "project",
	DimLanguage:        "language",
	DimEditor:          "editor",
	DimOperatingSystem: "operating_system",
	DimCategory:        "category",
}

// SourceType distinguishes real editor heartbeats from synthetic
// ones created during setup verification.
type SourceType string

const (
	SourceDirectEntry SourceType = "direct_entry"
	SourceTestEntry   SourceType = "test_entry"
)

// Heartbeat is a single timestamped activity ping. Heartbeats are
// append-only; nothing in this package updates or deletes them.
type Heartbeat struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	Time            float64    `json:"time"` // seconds since epoch
	Project         string     `json:"project"`
	Language        string     `json:"language"`
	Editor          string     `json:"editor"`
	OperatingSystem string     `json:"operating_system"`
	Category        string     `json:"category"`
	Entity          string     `json:"entity"`
	SourceType      SourceType `json:"source_type"`
}

// User is a heartbeat sender.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Timezone    string `json:"timezone"`
}

// ProjectMapping attaches a human label and repository URL to a
// raw project key for one user.
type ProjectMapping struct {
	Project string `json:"project"`
	Label   string `json:"label"`
	RepoURL string `json:"repo_url"`
}

// ValueDuration is one row of a grouped duration result.
type ValueDuration struct {
	Value   string `json:"value"`
	Seconds int64  `json:"seconds"`
}

// ValueCount is one row of a grouped heartbeat-count result.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// TimeRange restricts heartbeats to From <= time < To. A zero
// bound is open. Empty marks a contradictory range that matches
// nothing (a custom range with from after to); it is a valid
// filter, not an error.
type TimeRange struct {
	From  time.Time
	To    time.Time
	Empty bool
}

// AllTime is the unrestricted time range.
func AllTime() TimeRange { return TimeRange{} }

// HeartbeatFilter is the shared filter for heartbeat queries.
// One filter value is built per request and reused for every
// derived computation so all of them observe the same view.
type HeartbeatFilter struct {
	UserID     string
	Range      TimeRange
	Selections map[Dimension][]string
}

// buildWhere compiles the filter into a WHERE clause and args.
// Selections compose conjunctively; a selection listing values
// unknown to the data simply matches nothing.
func (f HeartbeatFilter) buildWhere() (string, []any) {
	if f.Range.Empty {
		return "0 = 1", nil
	}

	preds := []string{"user_id = ?"}
	args := []any{f.UserID}

	if !f.Range.From.IsZero() {
		preds = append(preds, "time >= ?")
		args = append(args, unixSeconds(f.Range.From))
	}
	if !f.Range.To.IsZero() {
		preds = append(preds, "time < ?")
		args = append(args, unixSeconds(f.Range.To))
	}

	for _, dim := range Dimensions() {
		values := f.Selections[dim]
		if len(values) == 0 {
			continue
		}
		ph, inArgs := inPlaceholders(values)
		preds = append(preds, dimensionColumns[dim]+" IN "+ph)
		args = append(args, inArgs...)
	}

	return joinAnd(preds), args
}

// unixSeconds converts t to fractional epoch seconds, matching
// the heartbeats.time column.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
