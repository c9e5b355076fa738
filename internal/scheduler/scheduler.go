package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the worker's periodic jobs. Currently that is a single
// hourly cache-stats report used as an operational heartbeat.
type Scheduler struct {
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	statsFunc func(ctx context.Context) error
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetStatsFunction sets the job that reports cache statistics.
func (s *Scheduler) SetStatsFunction(f func(ctx context.Context) error) {
	s.statsFunc = f
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.statsFunc == nil {
		log.Println("⚠️ stats function not set, scheduler will not report cache stats")
		return nil
	}

	// Hourly, on the hour
	_, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.statsFunc(s.ctx); err != nil {
			log.Printf("❌ cache stats report failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("📅 Scheduler started - cache stats reported hourly")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning reports whether any jobs are registered.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
