package handlers

import (
	"net/http"
	"time"
)

// StatsSummary reports today's activity counters.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if v := r.URL.Query().Get("day"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	stats, err := a.Stats.Summary(r.Context(), day)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"day":                       day.Format("2006-01-02"),
		"transformations_submitted": stats.TransformationsSubmitted,
		"descriptions_submitted":    stats.DescriptionsSubmitted,
		"jobs_completed":            stats.JobsCompleted,
		"jobs_failed":               stats.JobsFailed,
		"credits_refunded":          stats.CreditsRefunded,
	})
}
