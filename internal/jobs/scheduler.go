// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job struct {
	Name     string
	Schedule string
	Run      func()
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.SugaredLogger
}

// NewScheduler creates a scheduler whose jobs recover from panics.
func NewScheduler(logger *zap.SugaredLogger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Desugar()))
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
		logger: logger,
	}
}

// Register adds a job. An invalid schedule is returned as an error.
func (s *Scheduler) Register(job Job) error {
	if _, err := s.cron.AddFunc(job.Schedule, job.Run); err != nil {
		return fmt.Errorf("schedule %s job: %w", job.Name, err)
	}
	s.logger.Infow("scheduled job", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
