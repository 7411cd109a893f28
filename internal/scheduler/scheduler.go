package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bidworks/clearhouse/internal/clock"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	obslogger "github.com/bidworks/clearhouse/internal/observability/logger"
	"github.com/bidworks/clearhouse/internal/observability/metrics"
	payoutdomain "github.com/bidworks/clearhouse/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	PayoutSvc     payoutdomain.Service
	ComplianceSvc compliancedomain.Service
	Metrics       *metrics.Metrics `optional:"true"`
	Config        Config           `optional:"true"`
}

// Scheduler drives the periodic sweeps: releasing reserves whose hold
// window has elapsed, and expiring tax records past their validity date.
type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	payoutSvc     payoutdomain.Service
	complianceSvc compliancedomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.PayoutSvc == nil || p.ComplianceSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		payoutSvc:     p.PayoutSvc,
		complianceSvc: p.ComplianceSvc,
		metrics:       p.Metrics,
	}, nil
}

// logger carries trace correlation fields into job logs when the run is
// part of a traced context.
func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.logger(parent).With(zap.String("job", name))
	err := fn(ctx)
	elapsed := time.Since(start)

	if err == nil {
		s.metrics.ObserveJobRun(name, "ok", elapsed)
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next run picks up where this one stopped.
		s.metrics.ObserveJobRun(name, "timeout", elapsed)
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	s.metrics.ObserveJobRun(name, "error", elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"reserve_release", s.isJobEnabled("reserve_release"), func(ctx context.Context) error {
			return s.runJob(ctx, "reserve_release", 30*time.Second, s.ReserveReleaseJob)
		}},
		{"tax_record_expiry", s.isJobEnabled("tax_record_expiry"), func(ctx context.Context) error {
			return s.runJob(ctx, "tax_record_expiry", 30*time.Second, s.TaxRecordExpiryJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logger(ctx).Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) ReserveReleaseJob(ctx context.Context) error {
	released, err := s.payoutSvc.ReleaseDueReserves(ctx, s.clock.Now(), s.cfg.MaxReleaseBatchSize)
	if err != nil {
		return err
	}
	if released > 0 {
		s.logger(ctx).Info("released due reserves", zap.Int("count", released))
	}
	return nil
}

func (s *Scheduler) TaxRecordExpiryJob(ctx context.Context) error {
	expired, err := s.complianceSvc.ExpireRecords(ctx, s.clock.Now(), s.cfg.MaxExpiryBatchSize)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger(ctx).Info("expired tax records", zap.Int("count", expired))
	}
	return nil
}
