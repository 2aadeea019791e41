// Package worker runs the shop's background jobs.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PaymentExpirer cancels orders whose payment never arrived
type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context) (int, error)
}

// PaymentSweeper runs the expirer on a cron schedule
type PaymentSweeper struct {
	scheduler *cron.Cron
	expirer   PaymentExpirer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPaymentSweeper registers the sweep at schedule (standard cron or @every descriptors).
// Each run is bounded by timeout.
func NewPaymentSweeper(schedule string, expirer PaymentExpirer, timeout time.Duration, logger *zap.Logger) (*PaymentSweeper, error) {
	s := &PaymentSweeper{
		scheduler: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer:   expirer,
		timeout:   timeout,
		logger:    logger,
	}

	if _, err := s.scheduler.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("failed to schedule payment sweeper: %w", err)
	}

	return s, nil
}

// Start begins running scheduled sweeps in the background
func (s *PaymentSweeper) Start() {
	s.scheduler.Start()
	s.logger.Info("Payment sweeper started")
}

// Stop prevents new sweeps and waits for a running one to finish or ctx to expire
func (s *PaymentSweeper) Stop(ctx context.Context) {
	done := s.scheduler.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Payment sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("Payment sweeper stop timed out")
	}
}

// Run performs one sweep
func (s *PaymentSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	expired, err := s.expirer.ExpireStalePayments(ctx)
	if err != nil {
		s.logger.Error("Payment sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("Expired unpaid orders", zap.Int("count", expired))
	}
}
