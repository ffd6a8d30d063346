package sla

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives periodic breach-detection cycles. It is owned by the
// composition root: constructed once, started once, stopped on shutdown.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler builds a scheduler running a cycle every interval.
func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop. A failed cycle is logged and the next tick
// proceeds normally; nothing escapes into the caller.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("sla scheduler started", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop terminates the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("sla scheduler stopping", zap.Error(ctx.Err()))
			return
		case <-s.stop:
			s.logger.Info("sla scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.logger.Debug("running sla check")
	escalated, err := s.engine.RunCycle(ctx, time.Now())
	if err != nil {
		s.logger.Error("sla check failed", zap.Error(err))
		return
	}
	if escalated > 0 {
		s.logger.Info("sla check escalated tickets", zap.Int("count", escalated))
	}
}
