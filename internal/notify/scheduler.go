package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the per-minute evaluation of both engines. Digest
// candidate matching is minute-granular, so the interval must stay at one
// minute or digests are silently missed.
type Scheduler struct {
	cron      *cron.Cron
	reminders *ReminderEngine
	digests   *DigestEngine
	logger    *slog.Logger
}

func NewScheduler(reminders *ReminderEngine, digests *DigestEngine, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		reminders: reminders,
		digests:   digests,
		logger:    logger,
	}
}

// Start registers the per-minute jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		if err := s.reminders.ProcessDueReminders(nil); err != nil {
			s.logger.Error("reminder pass failed", "error", err)
		}
		if err := s.digests.ProcessDailyDigests(nil); err != nil {
			s.logger.Error("digest pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule notification pass: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
