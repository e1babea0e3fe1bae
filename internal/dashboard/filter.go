package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/pulseview/pulseview/internal/db"
	"github.com/pulseview/pulseview/internal/timeutil"
)

// Selections maps each dimension to its allowed values. A missing
// or empty entry imposes no restriction on that dimension.
type Selections map[db.Dimension][]string

// ParseSelections builds Selections from raw comma-separated
// request values, one per dimension. Blank fragments are dropped,
// so ",,go," restricts language to just "go".
func ParseSelections(get func(name string) string) Selections {
	sel := make(Selections)
	for _, dim := range db.Dimensions() {
		raw := get(string(dim))
		if raw == "" {
			continue
		}
		var values []string
		for _, part := range strings.Split(raw, ",") {
			if v := strings.TrimSpace(part); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			sel[dim] = values
		}
	}
	return sel
}

// Singular reports whether the dimension is restricted to exactly
// one value. Singular dimensions skip their own top-value and
// top-10 computations: the answer is the selected value itself.
func (s Selections) Singular(dim db.Dimension) bool {
	return len(s[dim]) == 1
}

// RangeSpec is the raw time-range request: either a named
// interval or a custom from/to date pair (YYYY-MM-DD).
type RangeSpec struct {
	Interval string
	From     string
	To       string
}

// ResolveTimeRange turns a RangeSpec into concrete bounds in the
// user's timezone. Unrecognized interval names fall back to all
// time. A custom range with from after to resolves to the empty
// range (matches nothing); malformed custom dates fall back to
// all time. Neither case is an error.
func ResolveTimeRange(
	spec RangeSpec, now time.Time, loc *time.Location,
) db.TimeRange {
	switch spec.Interval {
	case "today":
		return db.TimeRange{From: timeutil.StartOfDay(now, loc)}
	case "yesterday":
		start := timeutil.StartOfDay(now, loc).AddDate(0, 0, -1)
		return db.TimeRange{From: start, To: start.AddDate(0, 0, 1)}
	case "last_7_days":
		return db.TimeRange{From: now.AddDate(0, 0, -7)}
	case "last_30_days":
		return db.TimeRange{From: now.AddDate(0, 0, -30)}
	case "last_6_months":
		return db.TimeRange{From: now.AddDate(0, -6, 0)}
	case "last_12_months":
		return db.TimeRange{From: now.AddDate(0, -12, 0)}
	case "custom":
		return resolveCustom(spec, loc)
	default:
		return db.AllTime()
	}
}

func resolveCustom(spec RangeSpec, loc *time.Location) db.TimeRange {
	from, errFrom := timeutil.ParseISODate(spec.From, loc)
	to, errTo := timeutil.ParseISODate(spec.To, loc)
	if errFrom != nil || errTo != nil {
		return db.AllTime()
	}
	if from.After(to) {
		return db.TimeRange{Empty: true}
	}
	// To is the end of the named day, exclusive.
	return db.TimeRange{From: from, To: to.AddDate(0, 0, 1)}
}

// intersectRanges returns the overlap of two ranges; disjoint
// ranges intersect to the empty range.
func intersectRanges(a, b db.TimeRange) db.TimeRange {
	if a.Empty || b.Empty {
		return db.TimeRange{Empty: true}
	}
	out := db.TimeRange{From: a.From, To: a.To}
	if out.From.IsZero() || (!b.From.IsZero() && b.From.After(out.From)) {
		out.From = b.From
	}
	if out.To.IsZero() || (!b.To.IsZero() && b.To.Before(out.To)) {
		out.To = b.To
	}
	if !out.From.IsZero() && !out.To.IsZero() && !out.From.Before(out.To) {
		return db.TimeRange{Empty: true}
	}
	return out
}

// dashboardKey builds the canonical cache key for a dashboard
// request. Two requests selecting the same value sets produce the
// same key regardless of value order.
func dashboardKey(
	prefix, userID string, sel Selections, spec RangeSpec,
) string {
	parts := []string{prefix, userID}
	for _, dim := range db.Dimensions() {
		values := append([]string(nil), sel[dim]...)
		sort.Strings(values)
		parts = append(parts, string(dim)+"="+strings.Join(values, ","))
	}
	parts = append(parts,
		"interval="+spec.Interval,
		"from="+spec.From,
		"to="+spec.To,
	)
	return strings.Join(parts, "|")
}
