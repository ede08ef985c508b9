// Package scheduler triggers update runs at configured wall-clock times.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"banking/internal/logging"
	"banking/internal/models"
)

// Scheduler fires a task at each configured HH:MM time of day, every day.
type Scheduler struct {
	minutes []int
	task    func(context.Context)
	log     logging.Logger

	now func() time.Time
}

// New validates the configured hours and builds a scheduler around the task.
func New(config models.SchedulerConfig, task func(context.Context), log logging.Logger) (*Scheduler, error) {
	minutes := make([]int, 0, len(config.ScrappingHours))
	for _, hour := range config.ScrappingHours {
		parsed, err := time.Parse("15:04", hour)
		if err != nil {
			return nil, fmt.Errorf("invalid scrapping hour %q (expected HH:MM)", hour)
		}
		minutes = append(minutes, parsed.Hour()*60+parsed.Minute())
	}
	sort.Ints(minutes)
	return &Scheduler{
		minutes: minutes,
		task:    task,
		log:     log,
		now:     time.Now,
	}, nil
}

// Run blocks until the context is cancelled, firing the task at each
// configured time of day. With no configured hours it returns immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.minutes) == 0 {
		s.log.Info("No scrapping hours configured, scheduler idle")
		return nil
	}
	for {
		next := s.nextRun(s.now())
		s.log.Info("Next scheduled update",
			logging.Field{Key: logging.FieldDate, Value: next})

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		s.task(ctx)
	}
}

// nextRun returns the first configured time of day strictly after the given
// moment, rolling over to the next day when every slot has passed.
func (s *Scheduler) nextRun(after time.Time) time.Time {
	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, after.Location())
	minuteOfDay := after.Hour()*60 + after.Minute()
	for _, minute := range s.minutes {
		if minute > minuteOfDay {
			return day.Add(time.Duration(minute) * time.Minute)
		}
	}
	return day.AddDate(0, 0, 1).Add(time.Duration(s.minutes[0]) * time.Minute)
}
