package daily

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// UserLister enumerates users the scheduler generates cards for.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Scheduler fires the daily job once per day at a fixed local hour.
type Scheduler struct {
	job    *Job
	users  UserLister
	hour   int
	logger *zap.Logger
}

func NewScheduler(job *Job, users UserLister, hour int, logger *zap.Logger) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = 6
	}
	return &Scheduler{job: job, users: users, hour: hour, logger: logger}
}

// nextRun returns the next occurrence of the configured hour strictly
// after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, firing the job for every user at each
// scheduled tick. Per-user failures are logged and do not stop the sweep.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("daily scheduler started", zap.Int("hour", s.hour))
	for {
		next := s.nextRun(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("daily scheduler stopped")
			return
		case now := <-timer.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("list users for daily sweep", zap.Error(err))
		return
	}
	for _, uid := range userIDs {
		if ctx.Err() != nil {
			return
		}
		_, err := s.job.RunOnce(ctx, uid, now)
		switch {
		case errors.Is(err, ErrNoNotes), errors.Is(err, ErrBusy):
			s.logger.Debug("daily sweep skipped user", zap.String("user_id", uid), zap.Error(err))
		case err != nil:
			s.logger.Error("daily sweep user failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
}
