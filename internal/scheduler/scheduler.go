package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"keygate/internal/db"
	"keygate/internal/model"
)

// Scheduler runs the daily maintenance job: it logs a usage summary and,
// when configured, resets all usage counters. The reset is the only way a
// counter ever decreases and it is never exposed over HTTP.
type Scheduler struct {
	db         db.Service
	c          *cron.Cron
	logger     *slog.Logger
	resetDaily bool
}

func New(dbService db.Service, logger *slog.Logger, resetDaily bool) *Scheduler {
	return &Scheduler{
		db:         dbService,
		c:          cron.New(),
		logger:     logger.With("component", "scheduler"),
		resetDaily: resetDaily,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.c.AddFunc("@daily", s.RunDaily); err != nil {
		return fmt.Errorf("failed to schedule daily job: %w", err)
	}
	s.c.Start()
	return nil
}

// RunDaily is the body of the daily job. Exported so tests can invoke it
// without waiting for the cron trigger.
func (s *Scheduler) RunDaily() {
	ctx := context.Background()

	keys, err := s.db.ListAPIKeys(ctx)
	if err != nil {
		s.logger.Error("daily usage summary failed", "error", err)
		return
	}

	exhausted := 0
	total := 0
	for _, k := range keys {
		total += k.UsageCount
		if k.Status == model.StatusActive && k.UsageCount >= k.UsageLimit {
			exhausted++
		}
	}
	s.logger.Info("daily usage summary", "keys", len(keys), "units_consumed", total, "exhausted_keys", exhausted)

	if s.resetDaily {
		if err := s.db.ResetAllUsage(ctx); err != nil {
			s.logger.Error("daily usage reset failed", "error", err)
			return
		}
		s.logger.Info("daily usage reset complete")
	}
}

func (s *Scheduler) Stop() {
	s.c.Stop()
}
