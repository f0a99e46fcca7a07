package cron

import (
	"context"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/robfig/cron/v3"
)

// CatalogRefresher reloads the pricing catalog from the billing provider.
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) (*service.Catalog, error)
}

// UploadPruner removes converter sessions older than the given age.
type UploadPruner interface {
	Prune(maxAge time.Duration) (int, error)
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron      *cron.Cron
	catalog   CatalogRefresher
	uploads   UploadPruner
	retention time.Duration
	timeout   time.Duration
	log       *logger.Logger
}

// SchedulerDeps holds the collaborators of the scheduled jobs. Nil
// collaborators disable their job.
type SchedulerDeps struct {
	Catalog   CatalogRefresher
	Uploads   UploadPruner
	Retention time.Duration
	Log       *logger.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(deps SchedulerDeps) *Scheduler {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(),
		catalog:   deps.Catalog,
		uploads:   deps.Uploads,
		retention: deps.Retention,
		timeout:   30 * time.Second,
		log:       log.Named("cron"),
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if s.catalog != nil {
		// Every hour - keep the cached pricing catalog warm
		if _, err := s.cron.AddFunc("0 * * * *", s.refreshCatalog); err != nil {
			return err
		}
	}

	if s.uploads != nil && s.retention > 0 {
		// Every day at 3:30 AM - drop stale converter sessions
		if _, err := s.cron.AddFunc("30 3 * * *", s.pruneUploads); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	catalog, err := s.catalog.RefreshCatalog(ctx)
	if err != nil {
		s.log.Error("Pricing catalog refresh failed", "error", err)
		return
	}
	s.log.Debug("Pricing catalog refreshed", "plans", len(catalog.Plans))
}

func (s *Scheduler) pruneUploads() {
	removed, err := s.uploads.Prune(s.retention)
	if err != nil {
		s.log.Error("Upload cleanup failed", "error", err, "removed", removed)
		return
	}
	if removed > 0 {
		s.log.Info("Removed stale upload sessions", "count", removed)
	}
}

// RunNow runs a job immediately by name.
func (s *Scheduler) RunNow(job string) {
	switch job {
	case "pricing":
		if s.catalog != nil {
			s.refreshCatalog()
		}
	case "uploads":
		if s.uploads != nil {
			s.pruneUploads()
		}
	}
}
