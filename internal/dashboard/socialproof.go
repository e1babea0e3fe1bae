package dashboard

import (
	"context"
	"time"

	"github.com/pulseview/pulseview/internal/db"
	"github.com/pulseview/pulseview/internal/timeutil"
)

// placeholderName stands in for users who never set a display
// name.
const placeholderName = "Mystery Coder"

// proofTopUsers is how many onboarded users the proof surfaces.
const proofTopUsers = 5

// ProofWindow is one rung of the social-proof ladder: a lookback
// period and the minimum distinct-user count that makes the
// statement worth showing.
type ProofWindow struct {
	// Lookback is how far back to count. Ignored when
	// YearToDate is set.
	Lookback time.Duration
	// YearToDate counts from the start of the current calendar
	// year instead of a fixed lookback.
	YearToDate bool
	Threshold  int
	Label      string
}

// DefaultProofWindows returns the standard ladder, ordered from
// most recent and strictest to oldest and most lenient. The
// resolver takes the first satisfied window, so ordering is
// load-bearing.
func DefaultProofWindows() []ProofWindow {
	return []ProofWindow{
		{Lookback: 5 * time.Minute, Threshold: 1, Label: "in the last 5 minutes"},
		{Lookback: time.Hour, Threshold: 3, Label: "in the last hour"},
		{Lookback: 24 * time.Hour, Threshold: 5, Label: "today"},
		{Lookback: 7 * 24 * time.Hour, Threshold: 5, Label: "in the past week"},
		{Lookback: 30 * 24 * time.Hour, Threshold: 5, Label: "in the past month"},
		{YearToDate: true, Threshold: 5, Label: "this year"},
	}
}

// SocialProof is the most specific true onboarding statement:
// Count distinct users set up the tool within Label's window.
type SocialProof struct {
	Count    int       `json:"count"`
	Label    string    `json:"label"`
	TopUsers []db.User `json:"top_users"`
	UserIDs  []string  `json:"user_ids"`
}

// GetSocialProof walks the window ladder in order and returns the
// first window whose distinct-user count meets its threshold,
// with display info for the first few users. Returns (nil, nil)
// when no window qualifies; callers should then show nothing.
// Results are intentionally not cached here; callers own that.
func (s *Service) GetSocialProof(
	ctx context.Context,
) (*SocialProof, error) {
	now := s.now()
	for _, w := range s.windows {
		since := now.Add(-w.Lookback)
		if w.YearToDate {
			since = timeutil.StartOfYear(now, s.loc)
		}

		ids, err := s.store.DistinctUserIDs(
			ctx, since, db.SourceTestEntry,
		)
		if err != nil {
			return nil, err
		}
		if len(ids) < w.Threshold {
			continue
		}

		users, err := s.store.UsersByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		top := make([]db.User, 0, proofTopUsers)
		for _, u := range users {
			if u.DisplayName == "" {
				u.DisplayName = placeholderName
			}
			top = append(top, u)
			if len(top) == proofTopUsers {
				break
			}
		}

		return &SocialProof{
			Count:    len(ids),
			Label:    w.Label,
			TopUsers: top,
			UserIDs:  ids,
		}, nil
	}
	return nil, nil
}
