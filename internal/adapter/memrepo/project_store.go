package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"propstage/internal/domain"
)

// ProjectStore implements domain.ProjectRepository in process memory.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*domain.Project
}

// NewProjectStore creates an empty ProjectStore.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]*domain.Project)}
}

// Create inserts a project record.
func (s *ProjectStore) Create(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *project
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.projects[stored.ID] = &stored
	*project = stored
	return nil
}

// GetByID returns a copy of the project or domain.ErrNotFound.
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *project
	return &cp, nil
}

// ListByUser returns the user's projects, newest first.
func (s *ProjectStore) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Project, 0)
	for _, project := range s.projects {
		if project.UserID == userID {
			out = append(out, *project)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

// Delete removes the project. Cascading job deletion is the caller's job.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}
