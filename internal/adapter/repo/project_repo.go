package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propstage/internal/domain"
)

// ProjectRepositoryPG implements domain.ProjectRepository backed by PostgreSQL.
type ProjectRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{pool: pool}
}

// Create inserts a project record.
func (r *ProjectRepositoryPG) Create(ctx context.Context, project *domain.Project) error {
	row := r.pool.QueryRow(ctx, `
INSERT INTO projects (id, user_id, name, address)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`, project.ID, project.UserID, project.Name, project.Address)
	return row.Scan(&project.CreatedAt)
}

// GetByID fetches a project by identifier.
func (r *ProjectRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, address, created_at
FROM projects
WHERE id = $1;
`, id)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the user's projects, newest first.
func (r *ProjectRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, name, address, created_at
FROM projects
WHERE user_id = $1
ORDER BY created_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// Delete removes the project row. Job cascade is handled by the caller.
func (r *ProjectRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
