package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/databases"
)

const (
	resyncJob    = "convertkit_resync_job"
	creditJob    = "referral_credit_retry_job"
	jobTimeout   = 5 * time.Minute
	jobLockTTL   = 10 * time.Minute
	creditBatch  = 200
	defaultBatch = 100
)

// Resyncer re-emits sync events for verified users that never reached ConvertKit and
// settles referral credits that failed during verification
type Resyncer interface {
	ResyncUnsynced(ctx context.Context, limit int64) (int, error)
	RetryPendingCredits(ctx context.Context, limit int64) (int, error)
}

// Scheduler handles periodic background jobs for the waitlist. ResyncBatch caps the events
// one resync run publishes and must stay below the event bus capacity. SyncEnabled turns the
// ConvertKit resync job on.
type Scheduler struct {
	cron        *cron.Cron
	Resyncer    Resyncer
	LockDB      databases.SchedulerLockDatabase
	ResyncBatch int64
	SyncEnabled bool
	schedule    string
	instanceID  string
}

// NewScheduler creates a new scheduler instance running its jobs on schedule
func NewScheduler(resyncer Resyncer, lockDB databases.SchedulerLockDatabase, schedule string) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		if host, err := os.Hostname(); err == nil {
			instanceID = host + "-" + uuid.NewString()[:8]
		} else {
			instanceID = "instance-" + uuid.NewString()
		}
	}

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		Resyncer:    resyncer,
		LockDB:      lockDB,
		ResyncBatch: defaultBatch,
		SyncEnabled: true,
		schedule:    schedule,
		instanceID:  instanceID,
	}
}

// Start registers the jobs and begins the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.retryPendingCredits); err != nil {
		return fmt.Errorf("failed to register referral credit job: %w", err)
	}
	if s.SyncEnabled {
		if _, err := s.cron.AddFunc(s.schedule, s.resyncUnsynced); err != nil {
			return fmt.Errorf("failed to register resync job: %w", err)
		}
	} else {
		zap.S().Info("convertkit sync is disabled, resync job not scheduled")
	}
	s.cron.Start()
	zap.S().Infow("waitlist scheduler started",
		"schedule", s.schedule,
		"instance", s.instanceID,
		"resync", s.SyncEnabled)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("waitlist scheduler stopped")
}

// resyncUnsynced re-publishes UserVerified for users whose ConvertKit sync did not complete
func (s *Scheduler) resyncUnsynced() {
	s.runLocked(resyncJob, func(ctx context.Context) (int, error) {
		return s.Resyncer.ResyncUnsynced(ctx, s.ResyncBatch)
	})
}

// retryPendingCredits settles referral credits left over by failed verifications
func (s *Scheduler) retryPendingCredits() {
	s.runLocked(creditJob, func(ctx context.Context) (int, error) {
		return s.Resyncer.RetryPendingCredits(ctx, creditBatch)
	})
}

// runLocked runs job on at most one instance at a time
func (s *Scheduler) runLocked(name string, job func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, name, s.instanceID, jobLockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire job lock", "job", name, "error", err)
		return
	}
	if !acquired {
		zap.S().Debugw("job already running on another instance, skipping", "job", name)
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), name, s.instanceID); err != nil {
			zap.S().Warnw("failed to release job lock", "job", name, "error", err)
		}
	}()

	n, err := job(ctx)
	if err != nil {
		zap.S().Errorw("scheduled job failed", "job", name, "error", err)
		return
	}
	zap.S().Infow("scheduled job finished",
		"job", name,
		"instance", s.instanceID,
		"processed", n)
}
