package server

import (
	"net/http"

	"github.com/pulseview/pulseview/internal/dashboard"
)

// fullDaySeconds is the normalization ceiling for the activity
// graph: a day with 8 hours of tracked time renders at full
// intensity.
const fullDaySeconds = 28800

// requestUser extracts the required user query parameter. On a
// missing parameter it writes a 400 and returns false.
func requestUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user parameter is required")
		return "", false
	}
	return user, true
}

// requestRange reads the time-range descriptor from the query
// string. Unknown intervals resolve to all time downstream.
func requestRange(r *http.Request) dashboard.RangeSpec {
	q := r.URL.Query()
	return dashboard.RangeSpec{
		Interval: q.Get("interval"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	sel := dashboard.ParseSelections(r.URL.Query().Get)

	b, err := s.svc.GetFilterableDashboard(
		r.Context(), user, sel, requestRange(r),
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleProjectDurations(
	w http.ResponseWriter, r *http.Request,
) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	pds, err := s.svc.GetProjectDurations(r.Context(), user, requestRange(r))
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": pds})
}

func (s *Server) handleWeeklyProjects(
	w http.ResponseWriter, r *http.Request,
) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	sel := dashboard.ParseSelections(r.URL.Query().Get)

	weeks, err := s.svc.GetWeeklyProjectStats(
		r.Context(), user, sel, requestRange(r),
	)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

func (s *Server) handleActivityGraph(
	w http.ResponseWriter, r *http.Request,
) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	days, err := s.svc.GetActivityGraph(r.Context(), user)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":             days,
		"full_day_seconds": fullDaySeconds,
	})
}

func (s *Server) handleTodaySummary(
	w http.ResponseWriter, r *http.Request,
) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	summary, err := s.svc.GetTodaySummary(r.Context(), user)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSocialProof(
	w http.ResponseWriter, r *http.Request,
) {
	proof, err := s.svc.GetSocialProof(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// proof is nil when no window qualifies; clients get an
	// explicit null.
	writeJSON(w, http.StatusOK, map[string]any{"social_proof": proof})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTriggerIngest(
	w http.ResponseWriter, _ *http.Request,
) {
	stats := s.engine.IngestAll()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleIngestStatus(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, map[string]any{
		"last_run":   s.engine.LastRun(),
		"last_stats": s.engine.LastStats(),
	})
}
