package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories groups every pgx-backed repository.
type Repositories struct {
	UserRepo       UserRepository
	TeamRepo       TeamRepository
	InvitationRepo InvitationRepository
	ActivityRepo   ActivityRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:       NewUserRepository(pool),
		TeamRepo:       NewTeamRepository(pool),
		InvitationRepo: NewInvitationRepository(pool),
		ActivityRepo:   NewActivityRepository(pool),
	}
}
