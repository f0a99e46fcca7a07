package service

import (
	"context"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/types"
)

const recentActivityLimit = 10

// ============================================
// Activity Service
// ============================================

type ActivityService interface {
	// Record appends one audit entry. It does nothing without a team and
	// never reports failure to the caller.
	Record(ctx context.Context, teamID *int64, userID int64, kind types.ActivityType, ipAddress string)
	Recent(ctx context.Context, userID int64) ([]*repository.ActivityLog, error)
}

type activityService struct {
	activityRepo repository.ActivityRepository
	log          *logger.Logger
}

func NewActivityService(activityRepo repository.ActivityRepository, log *logger.Logger) ActivityService {
	return &activityService{activityRepo: activityRepo, log: log}
}

func (s *activityService) Record(ctx context.Context, teamID *int64, userID int64, kind types.ActivityType, ipAddress string) {
	if teamID == nil {
		return
	}

	entry := &repository.ActivityLog{
		TeamID: *teamID,
		Action: string(kind),
	}
	if userID > 0 {
		entry.UserID = &userID
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}

	if err := s.activityRepo.Create(ctx, entry); err != nil {
		s.log.Warn("[Activity] failed to record", "team_id", *teamID, "user_id", userID, "action", kind, "error", err)
	}
}

func (s *activityService) Recent(ctx context.Context, userID int64) ([]*repository.ActivityLog, error) {
	return s.activityRepo.FindRecentByUser(ctx, userID, recentActivityLimit)
}
