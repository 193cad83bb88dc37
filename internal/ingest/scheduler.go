package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs an Importer periodically.
type Scheduler struct {
	importer *Importer
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that runs importer at the specified
// interval.
func NewScheduler(importer *Importer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		importer: importer,
		interval: interval,
		logger:   logger,
	}
}

// Start begins periodic import. It runs an initial import immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current import (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.importOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.importOnce(ctx)
		}
	}
}

func (s *Scheduler) importOnce(ctx context.Context) {
	if _, err := s.importer.ImportOnce(ctx); err != nil {
		s.logger.Error("scheduled import failed", "source", s.importer.source.String(), "err", err)
	}
}
