package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityLog struct {
	ID        int64
	TeamID    int64
	UserID    *int64
	Action    string
	Timestamp time.Time
	IPAddress *string
	UserName  *string
}

// ActivityRepository is append-only.
type ActivityRepository interface {
	Create(ctx context.Context, entry *ActivityLog) error
	FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*ActivityLog, error)
}

type pgActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &pgActivityRepository{pool: pool}
}

func (r *pgActivityRepository) Create(ctx context.Context, entry *ActivityLog) error {
	query := `
		INSERT INTO activity_logs (team_id, user_id, action, ip_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp
	`
	return r.pool.QueryRow(ctx, query,
		entry.TeamID, entry.UserID, entry.Action, entry.IPAddress,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *pgActivityRepository) FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*ActivityLog, error) {
	query := `
		SELECT a.id, a.team_id, a.user_id, a.action, a.timestamp, a.ip_address, u.name
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.timestamp DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ActivityLog
	for rows.Next() {
		entry := &ActivityLog{}
		if err := rows.Scan(
			&entry.ID, &entry.TeamID, &entry.UserID, &entry.Action,
			&entry.Timestamp, &entry.IPAddress, &entry.UserName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
