package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Syncer is what the scheduler runs. *Reconciler implements it.
type Syncer interface {
	SyncAll(ctx context.Context) ([]SyncReport, error)
}

// Scheduler runs SyncAll on a fixed interval until stopped.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewScheduler returns a scheduler. An interval of zero or less disables
// it: Start and Stop become no-ops.
func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{syncer: syncer, interval: interval, logger: logger}
}

// Start launches the loop. The first run happens after one interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduled sync disabled")
		return
	}
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Add(1)
		go s.loop(ctx)
		s.logger.Info("scheduled sync started", slog.String("interval", s.interval.String()))
	})
}

// Stop cancels an in-flight run and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single SyncAll and logs the outcome per platform.
func (s *Scheduler) RunOnce(ctx context.Context) {
	reports, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", slog.String("error", err.Error()))
	}
	for _, r := range reports {
		if r.Err != nil {
			s.logger.Warn("scheduled platform sync failed",
				slog.String("platform", string(r.Platform)),
				slog.String("error", r.Err.Error()),
			)
			continue
		}
		s.logger.Info("scheduled platform sync done",
			slog.String("platform", string(r.Platform)),
			slog.Int("synced", r.Synced),
		)
	}
}
