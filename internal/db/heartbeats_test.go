package db

import (
	"context"
	"testing"
	"time"
)

// seedTwoProjects inserts two activity bursts 30s apart within
// each burst: alpha/Go/vim (3 pings, 60s) and beta/Python/emacs
// (2 pings, 30s), all for defaultUser.
func seedTwoProjects(t *testing.T, d *DB) {
	t.Helper()
	mustInsert(t, d,
		hb(0),
		hb(30),
		hb(60),
		hb(3600, func(h *Heartbeat) {
			h.Project = "beta"
			h.Language = "Python"
			h.Editor = "emacs"
		}),
		hb(3630, func(h *Heartbeat) {
			h.Project = "beta"
			h.Language = "Python"
			h.Editor = "emacs"
		}),
	)
}

func TestTotalDuration(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	seedTwoProjects(t, d)

	secs, count, err := d.TotalDuration(ctx, userFilter(defaultUser))
	if err != nil {
		t.Fatalf("TotalDuration: %v", err)
	}
	// 0→30→60 counts 60s; 60→3600 exceeds the 2m cutoff;
	// 3600→3630 counts 30s.
	if secs != 90 {
		t.Errorf("seconds = %d, want 90", secs)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}

	t.Run("OtherUserSeesNothing", func(t *testing.T) {
		secs, count, err := d.TotalDuration(ctx, userFilter("other"))
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if secs != 0 || count != 0 {
			t.Errorf("got (%d, %d), want (0, 0)", secs, count)
		}
	})
}

func TestGroupedDuration(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	seedTwoProjects(t, d)

	groups, err := d.GroupedDuration(
		ctx, userFilter(defaultUser), DimProject,
	)
	if err != nil {
		t.Fatalf("GroupedDuration: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Value != "alpha" || groups[0].Seconds != 60 {
		t.Errorf("top group = %+v, want alpha/60", groups[0])
	}
	if groups[1].Value != "beta" || groups[1].Seconds != 30 {
		t.Errorf("second group = %+v, want beta/30", groups[1])
	}

	t.Run("TotalMatchesGroupedSum", func(t *testing.T) {
		total, _, err := d.TotalDuration(ctx, userFilter(defaultUser))
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		var sum int64
		for _, g := range groups {
			sum += g.Seconds
		}
		if total != sum {
			t.Errorf("total %d != grouped sum %d", total, sum)
		}
	})

	t.Run("UnknownDimension", func(t *testing.T) {
		_, err := d.GroupedDuration(
			ctx, userFilter(defaultUser), Dimension("hostname"),
		)
		if err == nil {
			t.Fatal("expected error for unknown dimension")
		}
	})
}

func TestGroupedDurationInterleaved(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	// Projects alternate in time: alpha, beta, beta, alpha at 30s
	// spacing. Each gap must be credited to exactly one project
	// (the earlier ping's), never counted again by the project
	// that resumes later.
	mustInsert(t, d,
		hb(0),
		hb(30, func(h *Heartbeat) { h.Project = "beta" }),
		hb(60, func(h *Heartbeat) { h.Project = "beta" }),
		hb(90),
	)

	groups, err := d.GroupedDuration(
		ctx, userFilter(defaultUser), DimProject,
	)
	if err != nil {
		t.Fatalf("GroupedDuration: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// alpha owns 0→30; beta owns 30→60 and 60→90; the final
	// alpha ping closes the sequence and earns nothing.
	if groups[0].Value != "beta" || groups[0].Seconds != 60 {
		t.Errorf("top group = %+v, want beta/60", groups[0])
	}
	if groups[1].Value != "alpha" || groups[1].Seconds != 30 {
		t.Errorf("second group = %+v, want alpha/30", groups[1])
	}

	total, _, err := d.TotalDuration(ctx, userFilter(defaultUser))
	if err != nil {
		t.Fatalf("TotalDuration: %v", err)
	}
	var sum int64
	for _, g := range groups {
		sum += g.Seconds
	}
	if total != 90 || sum != total {
		t.Errorf(
			"total %d, grouped sum %d; want both 90", total, sum,
		)
	}
}

func TestGroupedDurationTieBreak(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	// Two projects with identical 30s durations.
	mustInsert(t, d,
		hb(0, func(h *Heartbeat) { h.Project = "zeta" }),
		hb(30, func(h *Heartbeat) { h.Project = "zeta" }),
		hb(3600, func(h *Heartbeat) { h.Project = "acme" }),
		hb(3630, func(h *Heartbeat) { h.Project = "acme" }),
	)

	for range 3 {
		groups, err := d.GroupedDuration(
			ctx, userFilter(defaultUser), DimProject,
		)
		if err != nil {
			t.Fatalf("GroupedDuration: %v", err)
		}
		if groups[0].Value != "acme" || groups[1].Value != "zeta" {
			t.Fatalf(
				"tie order = [%s %s], want [acme zeta]",
				groups[0].Value, groups[1].Value,
			)
		}
	}
}

func TestHeartbeatFilterSelections(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	seedTwoProjects(t, d)

	t.Run("SingleDimension", func(t *testing.T) {
		f := userFilter(defaultUser)
		f.Selections = map[Dimension][]string{
			DimProject: {"beta"},
		}
		secs, count, err := d.TotalDuration(ctx, f)
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if secs != 30 || count != 2 {
			t.Errorf("got (%d, %d), want (30, 2)", secs, count)
		}
	})

	t.Run("ConjunctiveAcrossDimensions", func(t *testing.T) {
		f := userFilter(defaultUser)
		f.Selections = map[Dimension][]string{
			DimProject:  {"beta"},
			DimLanguage: {"Go"},
		}
		// beta heartbeats are Python, so the AND matches nothing.
		_, count, err := d.TotalDuration(ctx, f)
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if count != 0 {
			t.Errorf("count = %d, want 0", count)
		}
	})

	t.Run("UnknownValueYieldsEmpty", func(t *testing.T) {
		f := userFilter(defaultUser)
		f.Selections = map[Dimension][]string{
			DimEditor: {"no-such-editor"},
		}
		_, count, err := d.TotalDuration(ctx, f)
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if count != 0 {
			t.Errorf("count = %d, want 0", count)
		}
	})

	t.Run("EmptyRangeMatchesNothing", func(t *testing.T) {
		f := userFilter(defaultUser)
		f.Range = TimeRange{Empty: true}
		_, count, err := d.TotalDuration(ctx, f)
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if count != 0 {
			t.Errorf("count = %d, want 0", count)
		}
	})

	t.Run("TimeRangeBounds", func(t *testing.T) {
		f := userFilter(defaultUser)
		f.Range = TimeRange{
			From: baseTime,
			To:   baseTime.Add(61 * time.Second),
		}
		_, count, err := d.TotalDuration(ctx, f)
		if err != nil {
			t.Fatalf("TotalDuration: %v", err)
		}
		if count != 3 {
			t.Errorf("count = %d, want 3 (alpha burst only)", count)
		}
	})
}

func TestGroupedCount(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	seedTwoProjects(t, d)

	counts, err := d.GroupedCount(
		ctx, userFilter(defaultUser), DimLanguage,
	)
	if err != nil {
		t.Fatalf("GroupedCount: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d groups, want 2", len(counts))
	}
	if counts[0].Value != "Go" || counts[0].Count != 3 {
		t.Errorf("top = %+v, want Go/3", counts[0])
	}
	if counts[1].Value != "Python" || counts[1].Count != 2 {
		t.Errorf("second = %+v, want Python/2", counts[1])
	}
}

func TestDailyDurationsTimezone(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	// 2024-06-03T23:30Z and 23:31Z: same UTC day, but already
	// June 4 in Tokyo (UTC+9).
	late := time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC)
	offset := late.Sub(baseTime).Seconds()
	mustInsert(t, d, hb(offset), hb(offset+60))

	utcDays, err := d.DailyDurations(
		ctx, userFilter(defaultUser), time.UTC,
	)
	if err != nil {
		t.Fatalf("DailyDurations: %v", err)
	}
	if utcDays["2024-06-03"] != 60 {
		t.Errorf("UTC 2024-06-03 = %d, want 60", utcDays["2024-06-03"])
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	tokyoDays, err := d.DailyDurations(
		ctx, userFilter(defaultUser), tokyo,
	)
	if err != nil {
		t.Fatalf("DailyDurations: %v", err)
	}
	if tokyoDays["2024-06-04"] != 60 {
		t.Errorf(
			"Tokyo 2024-06-04 = %d, want 60 (day boundary shift)",
			tokyoDays["2024-06-04"],
		)
	}
	if _, ok := tokyoDays["2024-06-03"]; ok {
		t.Error("Tokyo bucket unexpectedly contains 2024-06-03")
	}
}

func TestDistinctUserIDs(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	mustInsert(t, d,
		hb(0, func(h *Heartbeat) {
			h.UserID = "carol"
			h.SourceType = SourceTestEntry
		}),
		hb(10, func(h *Heartbeat) {
			h.UserID = "alice"
			h.SourceType = SourceTestEntry
		}),
		hb(20, func(h *Heartbeat) {
			h.UserID = "alice"
			h.SourceType = SourceTestEntry
		}),
		hb(30, func(h *Heartbeat) { h.UserID = "bob" }),
	)

	ids, err := d.DistinctUserIDs(
		ctx, baseTime.Add(-time.Hour), SourceTestEntry,
	)
	if err != nil {
		t.Fatalf("DistinctUserIDs: %v", err)
	}
	// bob has only a direct entry; carol pinged before alice.
	if len(ids) != 2 || ids[0] != "carol" || ids[1] != "alice" {
		t.Errorf("ids = %v, want [carol alice]", ids)
	}

	t.Run("SinceBoundExcludes", func(t *testing.T) {
		ids, err := d.DistinctUserIDs(
			ctx, baseTime.Add(5*time.Second), SourceTestEntry,
		)
		if err != nil {
			t.Fatalf("DistinctUserIDs: %v", err)
		}
		if len(ids) != 1 || ids[0] != "alice" {
			t.Errorf("ids = %v, want [alice]", ids)
		}
	})
}
