package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
)

const defaultUnlockBatchSize = 500

// UnlockNotifier tells an owner that their capsule opened.
type UnlockNotifier interface {
	SendUnlockNotification(ctx context.Context, capsule models.Capsule) error
}

// UnlockResult summarises one unlock sweep.
type UnlockResult struct {
	Due        int `json:"due" yaml:"due"`
	Unlocked   int `json:"unlocked" yaml:"unlocked"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Notified   int `json:"notified" yaml:"notified"`
	NotifyFail int `json:"notify_failed" yaml:"notify_failed"`
}

// UnlockSweeper flips due capsules to unlocked and notifies their owners.
type UnlockSweeper struct {
	Capsules  repository.CapsuleRepository
	Notifier  UnlockNotifier
	Now       services.Clock
	BatchSize int64
}

// NewUnlockSweeper creates a new instance of UnlockSweeper.
func NewUnlockSweeper(capsules repository.CapsuleRepository, notifier UnlockNotifier, now services.Clock, batchSize int64) *UnlockSweeper {
	if now == nil {
		now = time.Now
	}
	if batchSize <= 0 {
		batchSize = defaultUnlockBatchSize
	}
	return &UnlockSweeper{
		Capsules:  capsules,
		Notifier:  notifier,
		Now:       now,
		BatchSize: batchSize,
	}
}

// Sweep unlocks every locked capsule whose unlock time has passed. Only the
// caller whose conditional write flips the flag sends the notification, so
// overlapping sweeps never notify twice. A failed notification does not
// revert the unlock.
func (u *UnlockSweeper) Sweep(ctx context.Context) (UnlockResult, error) {
	var res UnlockResult
	now := u.Now().UTC()

	for {
		due, err := u.Capsules.FindDueForUnlock(ctx, now, u.BatchSize)
		if err != nil {
			sweepRuns.WithLabelValues("unlock", "error").Inc()
			return res, fmt.Errorf("failed to fetch capsules due for unlock: %w", err)
		}
		res.Due += len(due)

		won := 0
		for _, capsule := range due {
			if ctx.Err() != nil {
				sweepRuns.WithLabelValues("unlock", "cancelled").Inc()
				return res, ctx.Err()
			}

			ok, err := u.Capsules.MarkUnlocked(ctx, capsule.ID, now)
			if err != nil {
				logger.Log.WithError(err).WithField("capsuleID", capsule.ID.Hex()).Error("Failed to unlock capsule")
				res.Skipped++
				continue
			}
			if !ok {
				res.Skipped++
				continue
			}
			won++
			res.Unlocked++
			capsulesUnlocked.Inc()

			capsule.IsUnlocked = true
			capsule.UnlockedAt = &now
			if err := u.Notifier.SendUnlockNotification(ctx, capsule); err != nil {
				logger.Log.WithError(err).WithField("capsuleID", capsule.ID.Hex()).Error("Failed to send unlock notification")
				notificationFailures.WithLabelValues(models.NotificationUnlocked).Inc()
				res.NotifyFail++
				continue
			}
			notificationsSent.WithLabelValues(models.NotificationUnlocked).Inc()
			res.Notified++
		}

		// A full batch where this sweep won something may have more behind it.
		if int64(len(due)) < u.BatchSize || won == 0 {
			break
		}
	}

	sweepRuns.WithLabelValues("unlock", "ok").Inc()
	logger.Log.WithFields(logrus.Fields{
		"due":      res.Due,
		"unlocked": res.Unlocked,
		"notified": res.Notified,
		"failed":   res.NotifyFail,
	}).Info("Unlock sweep completed")
	return res, nil
}

// Run is the scheduler entry point; errors are logged.
func (u *UnlockSweeper) Run() {
	if _, err := u.Sweep(context.Background()); err != nil {
		logger.Log.WithError(err).Error("Unlock sweep failed")
	}
}
