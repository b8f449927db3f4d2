package domain

import "time"

// Counter names understood by StatsRepository.Increment.
const (
	StatTransformationsSubmitted = "transformations_submitted"
	StatDescriptionsSubmitted    = "descriptions_submitted"
	StatJobsCompleted            = "jobs_completed"
	StatJobsFailed               = "jobs_failed"
	StatCreditsRefunded          = "credits_refunded"
)

// DailyStats aggregates job activity for one day.
type DailyStats struct {
	Day                      time.Time
	TransformationsSubmitted int
	DescriptionsSubmitted    int
	JobsCompleted            int
	JobsFailed               int
	CreditsRefunded          int
}
