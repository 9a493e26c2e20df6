package jobs

import (
	"context"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"github.com/Dias221467/TimeCapsule/internal/services"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultLeadDays are the reminder lead times in days.
var DefaultLeadDays = []int{1, 3, 7}

// ReminderNotifier checks the ledger and sends upcoming-unlock reminders.
type ReminderNotifier interface {
	HasNotification(ctx context.Context, userID, capsuleID primitive.ObjectID, notifType string) (bool, error)
	SendReminderNotification(ctx context.Context, capsule models.Capsule, leadDays int) error
}

// ReminderResult summarises one reminder sweep.
type ReminderResult struct {
	Candidates int `json:"candidates" yaml:"candidates"`
	Sent       int `json:"sent" yaml:"sent"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Failed     int `json:"failed" yaml:"failed"`
}

// ReminderSweeper sends at most one unlock reminder per capsule.
type ReminderSweeper struct {
	Capsules repository.CapsuleRepository
	Notifier ReminderNotifier
	Now      services.Clock
	LeadDays []int
	Location *time.Location
}

// NewReminderSweeper creates a new instance of ReminderSweeper.
func NewReminderSweeper(capsules repository.CapsuleRepository, notifier ReminderNotifier, now services.Clock, leadDays []int, loc *time.Location) *ReminderSweeper {
	if now == nil {
		now = time.Now
	}
	if len(leadDays) == 0 {
		leadDays = DefaultLeadDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderSweeper{
		Capsules: capsules,
		Notifier: notifier,
		Now:      now,
		LeadDays: leadDays,
		Location: loc,
	}
}

// ReminderWindow returns the calendar day that lies days after now, in loc,
// as an inclusive [start, end] range with millisecond resolution.
func ReminderWindow(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	target := now.In(loc).AddDate(0, 0, days)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}

// Sweep looks at each lead time's target day and reminds owners of locked
// capsules in that day that never got a reminder. A failure on one lead time
// or one capsule does not stop the rest.
func (r *ReminderSweeper) Sweep(ctx context.Context) (ReminderResult, error) {
	var res ReminderResult
	now := r.Now()

	for _, lead := range r.LeadDays {
		if ctx.Err() != nil {
			sweepRuns.WithLabelValues("reminder", "cancelled").Inc()
			return res, ctx.Err()
		}

		from, to := ReminderWindow(now, lead, r.Location)
		capsules, err := r.Capsules.FindLockedUnlockingBetween(ctx, from.UTC(), to.UTC())
		if err != nil {
			logger.Log.WithError(err).WithField("leadDays", lead).Error("Failed to fetch capsules for reminders")
			res.Failed++
			continue
		}
		res.Candidates += len(capsules)

		for _, capsule := range capsules {
			entry := logger.Log.WithFields(logrus.Fields{
				"capsuleID": capsule.ID.Hex(),
				"leadDays":  lead,
			})

			sent, err := r.Notifier.HasNotification(ctx, capsule.UserID, capsule.ID, models.NotificationUnlockReminder)
			if err != nil {
				entry.WithError(err).Error("Failed to check reminder ledger")
				res.Failed++
				continue
			}
			if sent {
				res.Skipped++
				continue
			}

			if err := r.Notifier.SendReminderNotification(ctx, capsule, lead); err != nil {
				entry.WithError(err).Error("Failed to send reminder notification")
				notificationFailures.WithLabelValues(models.NotificationUnlockReminder).Inc()
				res.Failed++
				continue
			}
			notificationsSent.WithLabelValues(models.NotificationUnlockReminder).Inc()
			res.Sent++
		}
	}

	sweepRuns.WithLabelValues("reminder", "ok").Inc()
	logger.Log.WithFields(logrus.Fields{
		"candidates": res.Candidates,
		"sent":       res.Sent,
		"skipped":    res.Skipped,
		"failed":     res.Failed,
	}).Info("Reminder sweep completed")
	return res, nil
}

// Run is the scheduler entry point; errors are logged.
func (r *ReminderSweeper) Run() {
	if _, err := r.Sweep(context.Background()); err != nil {
		logger.Log.WithError(err).Error("Reminder sweep failed")
	}
}
