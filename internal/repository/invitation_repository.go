package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Invitation struct {
	ID        int64
	TeamID    int64
	Email     string
	Role      string
	InvitedBy int64
	InvitedAt time.Time
	Status    string // pending, accepted
}

type InvitationRepository interface {
	Create(ctx context.Context, invitation *Invitation) error
	FindPending(ctx context.Context, id int64, email string) (*Invitation, error)
	HasPending(ctx context.Context, teamID int64, email string) (bool, error)
	MarkAccepted(ctx context.Context, id int64) error
}

type pgInvitationRepository struct {
	pool *pgxpool.Pool
}

func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &pgInvitationRepository{pool: pool}
}

func (r *pgInvitationRepository) Create(ctx context.Context, invitation *Invitation) error {
	if invitation.Status == "" {
		invitation.Status = "pending"
	}
	query := `
		INSERT INTO invitations (team_id, email, role, invited_by, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invited_at
	`
	return r.pool.QueryRow(ctx, query,
		invitation.TeamID, invitation.Email, invitation.Role, invitation.InvitedBy, invitation.Status,
	).Scan(&invitation.ID, &invitation.InvitedAt)
}

func (r *pgInvitationRepository) FindPending(ctx context.Context, id int64, email string) (*Invitation, error) {
	query := `
		SELECT id, team_id, email, role, invited_by, invited_at, status
		FROM invitations
		WHERE id = $1 AND email = $2 AND status = 'pending'
		LIMIT 1
	`
	invitation := &Invitation{}
	err := r.pool.QueryRow(ctx, query, id, email).Scan(
		&invitation.ID, &invitation.TeamID, &invitation.Email, &invitation.Role,
		&invitation.InvitedBy, &invitation.InvitedAt, &invitation.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

func (r *pgInvitationRepository) HasPending(ctx context.Context, teamID int64, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE team_id = $1 AND email = $2 AND status = 'pending'
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, teamID, email).Scan(&exists)
	return exists, err
}

func (r *pgInvitationRepository) MarkAccepted(ctx context.Context, id int64) error {
	query := `UPDATE invitations SET status = 'accepted' WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
