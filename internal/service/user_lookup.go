package service

import (
	"context"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
)

// userLookup resolves the signed-in user from the request context.
type userLookup struct {
	userRepo repository.UserRepository
	teamRepo repository.TeamRepository
}

func newUserLookup(userRepo repository.UserRepository, teamRepo repository.TeamRepository) *userLookup {
	return &userLookup{userRepo: userRepo, teamRepo: teamRepo}
}

// Current returns the non-deleted user named by the session, or nil.
func (l *userLookup) Current(ctx context.Context) (*repository.User, error) {
	userID := auth.UserIDFromContext(ctx)
	if userID == 0 {
		return nil, nil
	}
	return l.userRepo.FindByID(ctx, userID)
}

// TeamOf returns the user's team, or nil when the user has none.
func (l *userLookup) TeamOf(ctx context.Context, userID int64) (*repository.Team, error) {
	return l.teamRepo.FindForUser(ctx, userID)
}

func teamIDOf(team *repository.Team) *int64 {
	if team == nil {
		return nil
	}
	id := team.ID
	return &id
}

// ByID returns the non-deleted user with id, or nil.
func (l *userLookup) ByID(ctx context.Context, id int64) (*repository.User, error) {
	return l.userRepo.FindByID(ctx, id)
}
