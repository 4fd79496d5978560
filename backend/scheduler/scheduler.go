// Package scheduler runs periodic progress maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"philosofium/backend/utils"

	"github.com/go-co-op/gocron"
)

// Reconciler repairs drifted course progress and reports how many rows it
// fixed.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type Scheduler struct {
	scheduler  *gocron.Scheduler
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
	log        *utils.Logger
}

func New(reconciler Reconciler, interval time.Duration, log *utils.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		reconciler: reconciler,
		interval:   interval,
		timeout:    5 * time.Minute,
		log:        log.With("component", "Scheduler"),
	}
}

// Start schedules reconciliation and returns immediately. A non-positive
// interval disables the job.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info("progress reconciliation disabled")
		return nil
	}
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.reconcile); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("progress reconciliation scheduled", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	fixed, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.log.Error("progress reconciliation failed", "error", err, "fixed", fixed)
		return
	}
	s.log.Info("progress reconciliation finished", "fixed", fixed, "took", time.Since(start).String())
}
