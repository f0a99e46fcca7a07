// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/billing"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/types"
)

const (
	TestEmail    = "test@test.com"
	TestPassword = "admin123"
	TestTeamName = "Test Team"
)

// Plans are the subscription plans created in a fresh Stripe account.
var Plans = []billing.PlanParams{
	{Name: "Base", Description: "Base subscription plan", UnitAmount: 800, Currency: "usd", Interval: "month"},
	{Name: "Plus", Description: "Plus subscription plan", UnitAmount: 1200, Currency: "usd", Interval: "month"},
}

// PlanCreator is the part of the billing provider seeding needs.
type PlanCreator interface {
	ListProducts(ctx context.Context) ([]billing.Product, error)
	CreatePlan(ctx context.Context, params billing.PlanParams) (*billing.Product, error)
}

// SeedData creates the test owner, their team and, when plans is set and
// the account has no products yet, the default plans. Existing data is
// left untouched.
func SeedData(ctx context.Context, repos *repository.Repositories, plans PlanCreator, log *logger.Logger) error {
	log = log.Named("seed")

	existing, err := repos.UserRepo.FindByEmail(ctx, TestEmail)
	if err != nil {
		return fmt.Errorf("failed to look up seed user: %w", err)
	}
	if existing != nil {
		log.Info("[Seed] Data already exists, skipping users", "email", TestEmail)
	} else if err := seedTeam(ctx, repos); err != nil {
		return err
	} else {
		log.Info("[Seed] Created test user and team", "email", TestEmail, "team", TestTeamName)
	}

	if plans == nil {
		return nil
	}
	return seedPlans(ctx, plans, log)
}

func seedTeam(ctx context.Context, repos *repository.Repositories) error {
	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		return err
	}

	user := &repository.User{
		Email:        TestEmail,
		PasswordHash: hash,
		Role:         types.RoleOwner,
	}
	if err := repos.UserRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create seed user: %w", err)
	}

	team := &repository.Team{Name: TestTeamName}
	if err := repos.TeamRepo.Create(ctx, team); err != nil {
		return fmt.Errorf("failed to create seed team: %w", err)
	}

	return repos.TeamRepo.AddMember(ctx, &repository.TeamMember{
		UserID: user.ID,
		TeamID: team.ID,
		Role:   types.RoleOwner,
	})
}

func seedPlans(ctx context.Context, plans PlanCreator, log *logger.Logger) error {
	products, err := plans.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	if len(products) > 0 {
		log.Info("[Seed] Stripe products exist, skipping plans", "count", len(products))
		return nil
	}

	for _, plan := range Plans {
		product, err := plans.CreatePlan(ctx, plan)
		if err != nil {
			return err
		}
		log.Info("[Seed] Created plan", "name", product.Name, "price", product.DefaultPriceID)
	}
	return nil
}
