package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propstage/internal/domain"
)

// StatsRepositoryPG implements domain.StatsRepository using an upsert per
// day row.
type StatsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepositoryPG {
	return &StatsRepositoryPG{pool: pool}
}

// Increment upserts counters for the provided day.
func (r *StatsRepositoryPG) Increment(ctx context.Context, day time.Time, counters map[string]int) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO stats_daily (
    day, transformations_submitted, descriptions_submitted, jobs_completed, jobs_failed, credits_refunded
) VALUES (
    $1, $2, $3, $4, $5, $6
) ON CONFLICT (day) DO UPDATE SET
    transformations_submitted = stats_daily.transformations_submitted + EXCLUDED.transformations_submitted,
    descriptions_submitted = stats_daily.descriptions_submitted + EXCLUDED.descriptions_submitted,
    jobs_completed = stats_daily.jobs_completed + EXCLUDED.jobs_completed,
    jobs_failed = stats_daily.jobs_failed + EXCLUDED.jobs_failed,
    credits_refunded = stats_daily.credits_refunded + EXCLUDED.credits_refunded;
`,
		day.UTC().Format("2006-01-02"),
		counters[domain.StatTransformationsSubmitted],
		counters[domain.StatDescriptionsSubmitted],
		counters[domain.StatJobsCompleted],
		counters[domain.StatJobsFailed],
		counters[domain.StatCreditsRefunded],
	)
	return err
}

// Summary returns the counters for the given day; zero counters when the
// day has no activity.
func (r *StatsRepositoryPG) Summary(ctx context.Context, day time.Time) (*domain.DailyStats, error) {
	row := r.pool.QueryRow(ctx, `
SELECT day, transformations_submitted, descriptions_submitted, jobs_completed, jobs_failed, credits_refunded
FROM stats_daily
WHERE day = $1;
`, day.UTC().Format("2006-01-02"))

	var stats domain.DailyStats
	if err := row.Scan(
		&stats.Day,
		&stats.TransformationsSubmitted,
		&stats.DescriptionsSubmitted,
		&stats.JobsCompleted,
		&stats.JobsFailed,
		&stats.CreditsRefunded,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.DailyStats{Day: day.UTC().Truncate(24 * time.Hour)}, nil
		}
		return nil, err
	}
	return &stats, nil
}
