// Command userplan is an operator tool that moves a user onto a plan and
// resets their credit balance to the plan grant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"propstage/internal/adapter/repo"
	"propstage/internal/domain"
)

func main() {
	var (
		idFlag      string
		planFlag    string
		creditsFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update")
	flag.StringVar(&planFlag, "plan", "pro", "plan to assign (free, pro, agency)")
	flag.IntVar(&creditsFlag, "credits", -2, "credit balance override (default: the plan grant)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}

	plan := domain.UserPlan(strings.TrimSpace(strings.ToLower(planFlag)))
	switch plan {
	case domain.UserPlanFree, domain.UserPlanPro, domain.UserPlanAgency:
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", planFlag))
	}

	credits, err := domain.PlanGrant(plan)
	if err != nil {
		exitWithError(err)
	}
	if creditsFlag >= domain.UnlimitedCredits {
		credits = creditsFlag
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		_ = godotenv.Load()
		dbURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)
	if err := users.SetPlan(ctx, userID, plan, credits); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	updated, err := users.GetByID(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load updated user: %w", err))
	}

	fmt.Printf("User %s updated to plan %s\n", updated.ID, updated.Plan)
	if updated.Unlimited() {
		fmt.Println("credits=unlimited")
	} else {
		fmt.Printf("credits=%d\n", updated.Credits)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
