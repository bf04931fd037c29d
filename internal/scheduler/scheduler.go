// Package scheduler wires up the cron job that triggers the daily
// matching run.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/digest-service/internal/batch"
)

// Scheduler wraps robfig/cron and fires one run per day for the current
// date. Manual triggers stay available over the HTTP surface.
type Scheduler struct {
	cron *cron.Cron
	orch *batch.Orchestrator
	spec string // cron spec, e.g. "0 6 * * *"
}

// New creates a Scheduler firing on the given cron spec.
func New(orch *batch.Orchestrator, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cron.DefaultLogger)),
		orch: orch,
		spec: spec,
	}
}

// Start registers the job and starts the scheduler. Unlike the scraping
// services there is no run-on-startup: a restart at noon must not send a
// second digest, and an already-COMPLETED date is a no-op anyway.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runToday(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runToday triggers the run for the current UTC date.
func (s *Scheduler) runToday(ctx context.Context) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	log.Printf("[scheduler] Triggering daily run for %s", date.Format("2006-01-02"))

	if _, err := s.orch.Run(ctx, batch.Options{Date: date}); err != nil {
		log.Printf("[scheduler] Daily run for %s failed: %v", date.Format("2006-01-02"), err)
	}
}
