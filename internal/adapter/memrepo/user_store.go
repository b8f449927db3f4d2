package memrepo

import (
	"context"
	"sync"
	"time"

	"propstage/internal/domain"
)

// UserStore implements domain.UserRepository in process memory. Credit
// mutations run under the store mutex so no reader can observe a
// half-applied balance.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*domain.User),
		now:   time.Now,
	}
}

// Upsert inserts the user or refreshes the mutable fields of an existing
// record, returning the stored state.
func (s *UserStore) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		stored := *user
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = s.now()
		}
		stored.UpdatedAt = stored.CreatedAt
		s.users[stored.ID] = &stored
		cp := stored
		return &cp, nil
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	existing.UpdatedAt = s.now()
	cp := *existing
	return &cp, nil
}

// GetByID returns a copy of the user or domain.ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// DebitCredits decrements the balance by n if it covers the amount, failing
// closed with domain.ErrInsufficientCredits otherwise. Unlimited accounts
// pass through untouched.
func (s *UserStore) DebitCredits(ctx context.Context, userID string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if user.Unlimited() {
		return domain.UnlimitedCredits, nil
	}
	if user.Credits < n {
		return user.Credits, domain.ErrInsufficientCredits
	}
	user.Credits -= n
	user.UpdatedAt = s.now()
	return user.Credits, nil
}

// AddCredits increments the balance by n. A no-op for unlimited accounts.
func (s *UserStore) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if user.Unlimited() {
		return domain.UnlimitedCredits, nil
	}
	user.Credits += n
	user.UpdatedAt = s.now()
	return user.Credits, nil
}

// SetPlan assigns a plan and its credit grant.
func (s *UserStore) SetPlan(ctx context.Context, userID string, plan domain.UserPlan, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	user.Plan = plan
	user.Credits = credits
	user.UpdatedAt = s.now()
	return nil
}
