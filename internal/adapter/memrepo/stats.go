package memrepo

import (
	"context"
	"sync"
	"time"

	"propstage/internal/domain"
)

// StatsStore implements domain.StatsRepository in process memory.
type StatsStore struct {
	mu   sync.Mutex
	days map[string]*domain.DailyStats
}

// NewStatsStore creates an empty StatsStore.
func NewStatsStore() *StatsStore {
	return &StatsStore{days: make(map[string]*domain.DailyStats)}
}

// Increment bumps the named counters for the given day.
func (s *StatsStore) Increment(ctx context.Context, day time.Time, counters map[string]int) error {
	key := dayKey(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.days[key]
	if !ok {
		stats = &domain.DailyStats{Day: day.UTC().Truncate(24 * time.Hour)}
		s.days[key] = stats
	}
	for name, delta := range counters {
		switch name {
		case domain.StatTransformationsSubmitted:
			stats.TransformationsSubmitted += delta
		case domain.StatDescriptionsSubmitted:
			stats.DescriptionsSubmitted += delta
		case domain.StatJobsCompleted:
			stats.JobsCompleted += delta
		case domain.StatJobsFailed:
			stats.JobsFailed += delta
		case domain.StatCreditsRefunded:
			stats.CreditsRefunded += delta
		}
	}
	return nil
}

// Summary returns the counters for the given day; zero counters when the
// day has no activity.
func (s *StatsStore) Summary(ctx context.Context, day time.Time) (*domain.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stats, ok := s.days[dayKey(day)]; ok {
		cp := *stats
		return &cp, nil
	}
	return &domain.DailyStats{Day: day.UTC().Truncate(24 * time.Hour)}, nil
}

func dayKey(day time.Time) string {
	return day.UTC().Format("2006-01-02")
}
