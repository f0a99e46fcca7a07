package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Team struct {
	ID                   int64
	Name                 string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripeProductID      *string
	PlanName             *string
	SubscriptionStatus   *string
}

type TeamMember struct {
	ID        int64
	UserID    int64
	TeamID    int64
	Role      string
	JoinedAt  time.Time
	UserName  *string
	UserEmail string
}

// SubscriptionUpdate overwrites every billing column of a team. A nil
// CustomerID keeps the stored customer.
type SubscriptionUpdate struct {
	CustomerID     *string
	SubscriptionID *string
	ProductID      *string
	PlanName       *string
	Status         string
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	FindByID(ctx context.Context, id int64) (*Team, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Team, error)
	FindForUser(ctx context.Context, userID int64) (*Team, error)
	ListMembers(ctx context.Context, teamID int64) ([]*TeamMember, error)
	UpdateSubscription(ctx context.Context, teamID int64, update SubscriptionUpdate) error
	AddMember(ctx context.Context, member *TeamMember) error
	RemoveMember(ctx context.Context, memberID, teamID int64) (bool, error)
	RemoveUser(ctx context.Context, userID, teamID int64) error
	HasMemberWithEmail(ctx context.Context, teamID int64, email string) (bool, error)
}

type pgTeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgTeamRepository{pool: pool}
}

const teamColumns = `t.id, t.name, t.created_at, t.updated_at, t.stripe_customer_id,
	t.stripe_subscription_id, t.stripe_product_id, t.plan_name, t.subscription_status`

func scanTeam(row pgx.Row) (*Team, error) {
	team := &Team{}
	err := row.Scan(
		&team.ID, &team.Name, &team.CreatedAt, &team.UpdatedAt, &team.StripeCustomerID,
		&team.StripeSubscriptionID, &team.StripeProductID, &team.PlanName, &team.SubscriptionStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (r *pgTeamRepository) Create(ctx context.Context, team *Team) error {
	query := `
		INSERT INTO teams (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query, team.Name).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
}

func (r *pgTeamRepository) FindByID(ctx context.Context, id int64) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.id = $1`
	return scanTeam(r.pool.QueryRow(ctx, query, id))
}

func (r *pgTeamRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.stripe_customer_id = $1 LIMIT 1`
	return scanTeam(r.pool.QueryRow(ctx, query, customerID))
}

// FindForUser returns the team of the user's earliest membership.
func (r *pgTeamRepository) FindForUser(ctx context.Context, userID int64) (*Team, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.user_id = $1
		ORDER BY tm.joined_at ASC, tm.id ASC
		LIMIT 1
	`
	return scanTeam(r.pool.QueryRow(ctx, query, userID))
}

func (r *pgTeamRepository) ListMembers(ctx context.Context, teamID int64) ([]*TeamMember, error) {
	query := `
		SELECT tm.id, tm.user_id, tm.team_id, tm.role, tm.joined_at, u.name, u.email
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at ASC
	`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		m := &TeamMember{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.JoinedAt, &m.UserName, &m.UserEmail); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *pgTeamRepository) UpdateSubscription(ctx context.Context, teamID int64, update SubscriptionUpdate) error {
	query := `
		UPDATE teams
		SET stripe_customer_id = COALESCE($2, stripe_customer_id),
			stripe_subscription_id = $3,
			stripe_product_id = $4,
			plan_name = $5,
			subscription_status = $6,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query,
		teamID, update.CustomerID, update.SubscriptionID, update.ProductID, update.PlanName, update.Status,
	)
	return mapWriteError(err)
}

func (r *pgTeamRepository) AddMember(ctx context.Context, member *TeamMember) error {
	query := `
		INSERT INTO team_members (user_id, team_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at
	`
	err := r.pool.QueryRow(ctx, query, member.UserID, member.TeamID, member.Role).Scan(&member.ID, &member.JoinedAt)
	return mapWriteError(err)
}

// RemoveMember deletes a membership row only when it belongs to teamID.
func (r *pgTeamRepository) RemoveMember(ctx context.Context, memberID, teamID int64) (bool, error) {
	query := `DELETE FROM team_members WHERE id = $1 AND team_id = $2`
	result, err := r.pool.Exec(ctx, query, memberID, teamID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *pgTeamRepository) RemoveUser(ctx context.Context, userID, teamID int64) error {
	query := `DELETE FROM team_members WHERE user_id = $1 AND team_id = $2`
	_, err := r.pool.Exec(ctx, query, userID, teamID)
	return err
}

func (r *pgTeamRepository) HasMemberWithEmail(ctx context.Context, teamID int64, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM team_members tm
			JOIN users u ON u.id = tm.user_id
			WHERE tm.team_id = $1 AND u.email = $2 AND u.deleted_at IS NULL
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, teamID, email).Scan(&exists)
	return exists, err
}
