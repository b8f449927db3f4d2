package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propstage/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
// Credit mutations are single conditional UPDATE statements, so the
// checked-and-set debit is atomic at the database.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

const userColumns = `id, email, plan, credits, created_at, updated_at`

// Upsert inserts or refreshes a user record.
func (r *UserRepositoryPG) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO users (id, email, plan, credits)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
    updated_at = NOW()
RETURNING `+userColumns+`;
`, user.ID, user.Email, user.Plan, user.Credits)
	return scanUser(row)
}

// GetByID fetches a user by identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id)
	return scanUser(row)
}

// DebitCredits decrements the balance by n when it covers the amount.
// Unlimited accounts (credits = -1) pass through untouched. A failed
// condition leaves the row unchanged and surfaces ErrInsufficientCredits.
func (r *UserRepositoryPG) DebitCredits(ctx context.Context, userID string, n int) (int, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE users
SET credits = CASE WHEN credits = -1 THEN credits ELSE credits - $2 END,
    updated_at = NOW()
WHERE id = $1
  AND (credits = -1 OR credits >= $2)
RETURNING credits;
`, userID, n)
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user is missing or the balance fell short.
			user, getErr := r.GetByID(ctx, userID)
			if getErr != nil {
				return 0, getErr
			}
			return user.Credits, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	return remaining, nil
}

// AddCredits increments the balance by n. A no-op for unlimited accounts.
func (r *UserRepositoryPG) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE users
SET credits = CASE WHEN credits = -1 THEN credits ELSE credits + $2 END,
    updated_at = NOW()
WHERE id = $1
RETURNING credits;
`, userID, n)
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return remaining, nil
}

// SetPlan assigns a plan and its credit grant.
func (r *UserRepositoryPG) SetPlan(ctx context.Context, userID string, plan domain.UserPlan, credits int) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET plan = $2, credits = $3, updated_at = NOW()
WHERE id = $1;
`, userID, plan, credits)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Plan, &u.Credits, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
