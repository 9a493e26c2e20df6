package cron

import (
	"fmt"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is a sweep the scheduler can trigger.
type Job interface {
	Run()
}

// StartCapsuleCronJobs registers the unlock and reminder sweeps and starts the
// scheduler. A sweep that is still running when its next tick fires is skipped.
func StartCapsuleCronJobs(cfg *config.Config, unlock, reminder Job) (*cron.Cron, error) {
	c, err := NewScheduler(cfg, unlock, reminder)
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.Log.WithField("entries", len(c.Entries())).Info("Capsule cron jobs started")
	return c, nil
}

// NewScheduler builds the scheduler without starting it.
func NewScheduler(cfg *config.Config, unlock, reminder Job) (*cron.Cron, error) {
	cronLogger := cron.VerbosePrintfLogger(logger.Log)
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	// Unlock due capsules
	if _, err := c.AddJob(cfg.UnlockSchedule, unlock); err != nil {
		return nil, fmt.Errorf("invalid unlock schedule %q: %w", cfg.UnlockSchedule, err)
	}

	// Upcoming unlock reminders
	if _, err := c.AddJob(cfg.ReminderSchedule, reminder); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderSchedule, err)
	}

	return c, nil
}
