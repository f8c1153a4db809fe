package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type overdueExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// ExpirySweeper periodically expires overdue pending approvals. Expiry
// is data driven; the sweeper just evaluates it on a ticker.
type ExpirySweeper struct {
	approvals overdueExpirer
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewExpirySweeper constructs the sweeper.
func NewExpirySweeper(approvals overdueExpirer, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ExpirySweeper{approvals: approvals, interval: interval, logger: logger}
}

// Start launches the sweep loop. One immediate sweep runs at startup so
// a restart cannot leave overdue approvals pending for a full interval.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *ExpirySweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	count, err := s.approvals.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("expired overdue approvals", zap.Int("count", count))
	}
}
