package domain

import "time"

// UserPlan enumerates billing plans.
type UserPlan string

const (
	UserPlanFree   UserPlan = "free"
	UserPlanPro    UserPlan = "pro"
	UserPlanAgency UserPlan = "agency"
)

// UnlimitedCredits is the sentinel balance for plans without a credit cap.
const UnlimitedCredits = -1

// PlanGrant returns the credit balance a plan starts with. Agency accounts
// are uncapped.
func PlanGrant(plan UserPlan) (int, error) {
	switch plan {
	case UserPlanFree:
		return 5, nil
	case UserPlanPro:
		return 50, nil
	case UserPlanAgency:
		return UnlimitedCredits, nil
	default:
		return 0, ErrUnsupportedPlan
	}
}

// User represents an account within the platform.
type User struct {
	ID        string
	Email     string
	Plan      UserPlan
	Credits   int // UnlimitedCredits means no cap
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unlimited reports whether the account bypasses credit accounting.
func (u User) Unlimited() bool {
	return u.Credits == UnlimitedCredits
}
