// Package dashboard derives human-facing statistics from stored
// heartbeats: filtered duration totals, per-dimension breakdowns,
// a 26-week activity timeline, and social-proof counts. All
// expensive aggregates are memoized per exact filter combination.
package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulseview/pulseview/internal/db"
	"github.com/pulseview/pulseview/internal/timeutil"
)

const (
	// dashboardTTL bounds staleness of the filterable dashboard.
	dashboardTTL = 5 * time.Minute
	// shortTTL bounds staleness of the lighter read paths
	// (project durations, activity graph).
	shortTTL = time.Minute

	// weeksInTimeline is the length of the weekly activity
	// timeline (26 weeks, about 6 months).
	weeksInTimeline = 26

	// activityGraphDays is the history window of the activity
	// graph, long enough to cover a leap year.
	activityGraphDays = 366

	topN = 10

	// unknownLabel stands in for blank dimension values in
	// presentation output. Internally groups keep their raw
	// (possibly empty) labels so joins against project mappings
	// still work.
	unknownLabel = "Unknown"
)

// Store is the event-store surface the dashboard needs. *db.DB
// satisfies it; tests substitute fakes.
type Store interface {
	TotalDuration(ctx context.Context, f db.HeartbeatFilter) (int64, int, error)
	GroupedDuration(ctx context.Context, f db.HeartbeatFilter, dim db.Dimension) ([]db.ValueDuration, error)
	GroupedCount(ctx context.Context, f db.HeartbeatFilter, dim db.Dimension) ([]db.ValueCount, error)
	DailyDurations(ctx context.Context, f db.HeartbeatFilter, loc *time.Location) (map[string]int64, error)
	DistinctUserIDs(ctx context.Context, since time.Time, source db.SourceType) ([]string, error)
	UsersByID(ctx context.Context, ids []string) ([]db.User, error)
	UserLocation(ctx context.Context, userID string) (*time.Location, error)
	ProjectMappings(ctx context.Context, userID string) ([]db.ProjectMapping, error)
}

// Service computes and caches dashboard aggregates.
type Service struct {
	store   Store
	cache   *ResultCache
	windows []ProofWindow
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithProofWindows overrides the social-proof window ladder.
func WithProofWindows(windows []ProofWindow) Option {
	return func(s *Service) { s.windows = windows }
}

// WithLocation sets the zone for calendar-anchored windows (the
// year-to-date social-proof rung). Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a dashboard service on top of store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		cache:   NewResultCache(),
		windows: DefaultProofWindows(),
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetFilterableDashboard returns the cached aggregate bundle for
// one user, filter selection, and time range. A cache miss fans
// out the underlying store reads concurrently; any read failure
// aborts the whole fill and nothing is cached.
func (s *Service) GetFilterableDashboard(
	ctx context.Context, userID string,
	sel Selections, spec RangeSpec,
) (*Bundle, error) {
	key := dashboardKey("dashboard", userID, sel, spec)
	return Fetch(s.cache, key, dashboardTTL, func() (*Bundle, error) {
		return s.buildBundle(ctx, userID, sel, spec)
	})
}

func (s *Service) buildBundle(
	ctx context.Context, userID string,
	sel Selections, spec RangeSpec,
) (*Bundle, error) {
	loc, err := s.store.UserLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// One base view and one filtered view, built once and reused
	// by every derived computation below.
	base := db.HeartbeatFilter{UserID: userID}
	filtered := db.HeartbeatFilter{
		UserID:     userID,
		Range:      ResolveTimeRange(spec, now, loc),
		Selections: sel,
	}

	dims := db.Dimensions()
	available := make([][]db.ValueDuration, len(dims))
	grouped := make([][]db.ValueDuration, len(dims))
	weeks := make([]WeekBucket, weeksInTimeline)
	var totalSeconds int64
	var totalCount int

	g, gctx := errgroup.WithContext(ctx)

	for i, dim := range dims {
		g.Go(func() error {
			vds, err := s.store.GroupedDuration(gctx, base, dim)
			if err != nil {
				return err
			}
			available[i] = vds
			return nil
		})

		if sel.Singular(dim) {
			continue
		}
		g.Go(func() error {
			vds, err := s.store.GroupedDuration(gctx, filtered, dim)
			if err != nil {
				return err
			}
			grouped[i] = vds
			return nil
		})
	}

	g.Go(func() error {
		secs, count, err := s.store.TotalDuration(gctx, filtered)
		if err != nil {
			return err
		}
		totalSeconds, totalCount = secs, count
		return nil
	})

	weekStart := timeutil.StartOfWeek(now, loc)
	for offset := range weeksInTimeline {
		g.Go(func() error {
			start := weekStart.AddDate(0, 0, -7*offset)
			end := start.AddDate(0, 0, 7)
			weekView := filtered
			weekView.Range = intersectRanges(
				filtered.Range, db.TimeRange{From: start, To: end},
			)
			vds, err := s.store.GroupedDuration(
				gctx, weekView, db.DimProject,
			)
			if err != nil {
				return err
			}
			projects := make(map[string]int64, len(vds))
			for _, vd := range vds {
				projects[vd.Value] = vd.Seconds
			}
			weeks[offset] = WeekBucket{
				WeekStart: timeutil.ISODate(start),
				Projects:  projects,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := &Bundle{
		TotalSeconds:       totalSeconds,
		TotalHeartbeats:    totalCount,
		WeeklyProjectStats: weeks,
	}

	for i, dim := range dims {
		values := availableValues(available[i])
		switch dim {
		case db.DimProject:
			b.Projects = values
			b.TopProject = topValue(grouped[i])
			b.ProjectDurations = positiveTopN(grouped[i])
		case db.DimLanguage:
			b.Languages = values
			b.TopLanguage = topValue(grouped[i])
			b.LanguageStats = presentTopN(grouped[i])
		case db.DimEditor:
			b.Editors = values
			b.TopEditor = topValue(grouped[i])
			b.EditorStats = presentTopN(grouped[i])
		case db.DimOperatingSystem:
			b.OperatingSystems = values
			b.TopOperatingSystem = topValue(grouped[i])
			b.OperatingSystemStats = presentTopN(grouped[i])
		case db.DimCategory:
			b.Categories = values
			b.TopCategory = topValue(grouped[i])
			b.CategoryStats = presentTopN(grouped[i])
		}
	}

	return b, nil
}

// GetWeeklyProjectStats returns the 26-week per-project timeline
// for the filtered view, most recent week first. It reads through
// the same cached bundle as the dashboard.
func (s *Service) GetWeeklyProjectStats(
	ctx context.Context, userID string,
	sel Selections, spec RangeSpec,
) ([]WeekBucket, error) {
	b, err := s.GetFilterableDashboard(ctx, userID, sel, spec)
	if err != nil {
		return nil, err
	}
	return b.WeeklyProjectStats, nil
}

// GetProjectDurations returns per-project durations for the given
// time range, enriched with the user's project labels and repo
// URLs. Projects with zero accumulated seconds are excluded.
func (s *Service) GetProjectDurations(
	ctx context.Context, userID string, spec RangeSpec,
) ([]ProjectDuration, error) {
	key := dashboardKey("project_durations", userID, nil, spec)
	return Fetch(s.cache, key, shortTTL, func() ([]ProjectDuration, error) {
		loc, err := s.store.UserLocation(ctx, userID)
		if err != nil {
			return nil, err
		}
		f := db.HeartbeatFilter{
			UserID: userID,
			Range:  ResolveTimeRange(spec, s.now(), loc),
		}

		grouped, err := s.store.GroupedDuration(ctx, f, db.DimProject)
		if err != nil {
			return nil, err
		}
		mappings, err := s.store.ProjectMappings(ctx, userID)
		if err != nil {
			return nil, err
		}

		byProject := make(map[string]db.ProjectMapping, len(mappings))
		for _, m := range mappings {
			byProject[m.Project] = m
		}

		out := make([]ProjectDuration, 0, len(grouped))
		for _, vd := range grouped {
			if vd.Seconds <= 0 {
				continue
			}
			pd := ProjectDuration{
				Project: vd.Value,
				Seconds: vd.Seconds,
			}
			if m, ok := byProject[vd.Value]; ok {
				if m.Label != "" {
					pd.Project = m.Label
				}
				pd.RepoURL = m.RepoURL
			}
			if pd.Project == "" {
				pd.Project = unknownLabel
			}
			out = append(out, pd)
		}
		return out, nil
	})
}

// GetActivityGraph returns per-day duration totals over the last
// activityGraphDays days, keyed by ISO date in the user's
// timezone.
func (s *Service) GetActivityGraph(
	ctx context.Context, userID string,
) (map[string]int64, error) {
	key := "activity|" + userID
	return Fetch(s.cache, key, shortTTL, func() (map[string]int64, error) {
		loc, err := s.store.UserLocation(ctx, userID)
		if err != nil {
			return nil, err
		}
		from := timeutil.StartOfDay(
			s.now().In(loc).AddDate(0, 0, -activityGraphDays), loc,
		)
		return s.store.DailyDurations(
			ctx, db.HeartbeatFilter{
				UserID: userID,
				Range:  db.TimeRange{From: from},
			}, loc,
		)
	})
}

// GetTodaySummary returns today's languages and editors ordered
// by heartbeat count, plus today's total duration, in the user's
// timezone. Not cached: the underlying reads are cheap and the
// result changes minute to minute.
func (s *Service) GetTodaySummary(
	ctx context.Context, userID string,
) (TodaySummary, error) {
	loc, err := s.store.UserLocation(ctx, userID)
	if err != nil {
		return TodaySummary{}, err
	}
	f := db.HeartbeatFilter{
		UserID: userID,
		Range: db.TimeRange{
			From: timeutil.StartOfDay(s.now(), loc),
		},
	}

	var summary TodaySummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.store.GroupedCount(gctx, f, db.DimLanguage)
		if err != nil {
			return err
		}
		summary.Languages = countValues(counts)
		return nil
	})
	g.Go(func() error {
		counts, err := s.store.GroupedCount(gctx, f, db.DimEditor)
		if err != nil {
			return err
		}
		summary.Editors = countValues(counts)
		return nil
	})
	g.Go(func() error {
		secs, _, err := s.store.TotalDuration(gctx, f)
		if err != nil {
			return err
		}
		summary.TotalSeconds = secs
		return nil
	})
	if err := g.Wait(); err != nil {
		return TodaySummary{}, err
	}
	return summary, nil
}

// availableValues extracts non-blank labels from a grouped
// result, preserving its duration ordering.
func availableValues(vds []db.ValueDuration) []string {
	out := make([]string, 0, len(vds))
	for _, vd := range vds {
		if vd.Value != "" {
			out = append(out, vd.Value)
		}
	}
	return out
}

// topValue returns the label of the highest-duration group, or ""
// when the group is empty or the dimension was skipped.
func topValue(vds []db.ValueDuration) string {
	if len(vds) == 0 {
		return ""
	}
	return vds[0].Value
}

// positiveTopN takes the first topN groups with strictly positive
// duration, keeping raw labels.
func positiveTopN(vds []db.ValueDuration) []db.ValueDuration {
	var out []db.ValueDuration
	for _, vd := range vds {
		if vd.Seconds <= 0 {
			continue
		}
		out = append(out, vd)
		if len(out) == topN {
			break
		}
	}
	return out
}

// presentTopN takes the first topN groups and relabels blank
// values for presentation.
func presentTopN(vds []db.ValueDuration) []db.ValueDuration {
	if len(vds) == 0 {
		return nil
	}
	n := min(len(vds), topN)
	out := make([]db.ValueDuration, n)
	for i, vd := range vds[:n] {
		if vd.Value == "" {
			vd.Value = unknownLabel
		}
		out[i] = vd
	}
	return out
}

// countValues extracts non-blank labels from a grouped count
// result, preserving its ordering.
func countValues(vcs []db.ValueCount) []string {
	out := make([]string, 0, len(vcs))
	for _, vc := range vcs {
		if vc.Value != "" {
			out = append(out, vc.Value)
		}
	}
	return out
}
