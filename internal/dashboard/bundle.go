package dashboard

import "github.com/pulseview/pulseview/internal/db"

// Bundle is the full cached result of one filterable dashboard
// request. Cached bundles are shared between requests; callers
// must treat them as read-only.
//
// Top values and per-dimension stats are omitted (zero value)
// when that dimension is restricted to a single value, since the
// answer would just echo the selection.
type Bundle struct {
	// Available filter values per dimension, ordered by total
	// duration over the user's unfiltered history, blank labels
	// excluded.
	Projects         []string `json:"projects"`
	Languages        []string `json:"languages"`
	Editors          []string `json:"editors"`
	OperatingSystems []string `json:"operating_systems"`
	Categories       []string `json:"categories"`

	TotalSeconds    int64 `json:"total_seconds"`
	TotalHeartbeats int   `json:"total_heartbeats"`

	TopProject         string `json:"top_project,omitempty"`
	TopLanguage        string `json:"top_language,omitempty"`
	TopEditor          string `json:"top_editor,omitempty"`
	TopOperatingSystem string `json:"top_operating_system,omitempty"`
	TopCategory        string `json:"top_category,omitempty"`

	// Top-10 project durations, zero-duration projects excluded.
	ProjectDurations []db.ValueDuration `json:"project_durations,omitempty"`

	// Top-10 duration breakdowns with blank labels presented as
	// "Unknown".
	LanguageStats        []db.ValueDuration `json:"language_stats,omitempty"`
	EditorStats          []db.ValueDuration `json:"editor_stats,omitempty"`
	OperatingSystemStats []db.ValueDuration `json:"operating_system_stats,omitempty"`
	CategoryStats        []db.ValueDuration `json:"category_stats,omitempty"`

	// 26 week buckets, most recent first.
	WeeklyProjectStats []WeekBucket `json:"weekly_project_stats"`
}

// WeekBucket is one week of per-project durations. Projects is
// always non-nil; a week without activity has an empty map.
type WeekBucket struct {
	WeekStart string           `json:"week_start"` // ISO date of the Monday
	Projects  map[string]int64 `json:"projects"`
}

// ProjectDuration is one row of the per-project durations
// listing, enriched with the user's project mapping when one
// exists.
type ProjectDuration struct {
	Project string `json:"project"`
	RepoURL string `json:"repo_url,omitempty"`
	Seconds int64  `json:"seconds"`
}

// TodaySummary holds the current day's activity in the user's
// timezone.
type TodaySummary struct {
	Languages    []string `json:"languages"`
	Editors      []string `json:"editors"`
	TotalSeconds int64    `json:"total_seconds"`
}
