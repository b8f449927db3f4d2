// Package ledger tracks per-user credit balances. Debits are checked-and-set
// in a single repository operation and fail closed; refunds and plan grants
// go through Add/Upgrade.
package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// Ledger mediates all credit mutations. Balance state lives in the user
// repository; the ledger never caches it.
type Ledger struct {
	users  domain.UserRepository
	logger zerolog.Logger
}

// New creates a Ledger over the given user repository.
func New(users domain.UserRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{users: users, logger: logger}
}

// Use atomically debits n credits from the user. It returns the remaining
// balance, or domain.ErrInsufficientCredits without mutating anything when
// the balance does not cover n.
func (l *Ledger) Use(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("ledger: debit amount must be positive, got %d", n)
	}
	remaining, err := l.users.DebitCredits(ctx, userID, n)
	if err != nil {
		return remaining, err
	}
	l.logger.Debug().Str("user_id", userID).Int("amount", n).Int("remaining", remaining).Msg("ledger: debit")
	return remaining, nil
}

// Add unconditionally credits n to the user. Used for refunds and top-ups;
// unlimited accounts are untouched.
func (l *Ledger) Add(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("ledger: credit amount must be positive, got %d", n)
	}
	remaining, err := l.users.AddCredits(ctx, userID, n)
	if err != nil {
		return remaining, err
	}
	l.logger.Debug().Str("user_id", userID).Int("amount", n).Int("remaining", remaining).Msg("ledger: credit")
	return remaining, nil
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// Upgrade moves the user onto a plan and resets the balance to the plan
// grant. Agency accounts get the unlimited sentinel.
func (l *Ledger) Upgrade(ctx context.Context, userID string, plan domain.UserPlan) error {
	grant, err := domain.PlanGrant(plan)
	if err != nil {
		return err
	}
	if err := l.users.SetPlan(ctx, userID, plan, grant); err != nil {
		return err
	}
	l.logger.Info().Str("user_id", userID).Str("plan", string(plan)).Int("credits", grant).Msg("ledger: plan upgraded")
	return nil
}
