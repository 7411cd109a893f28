package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bidworks/clearhouse/internal/clock"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/gate"
	"github.com/bidworks/clearhouse/internal/observability/metrics"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/bidworks/clearhouse/internal/providers/notify"
	"github.com/bidworks/clearhouse/internal/providers/transfer"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	Settlement *config.SettlementConfigHolder
	Repo       domain.Repository
	Gate       *gate.Gate
	Locker     *payee.Locker
	Executor   transfer.Executor
	Dispatcher notify.Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	clock      clock.Clock
	settlement *config.SettlementConfigHolder
	repo       domain.Repository
	gate       *gate.Gate
	locker     *payee.Locker
	executor   transfer.Executor
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		clock:      p.Clock,
		settlement: p.Settlement,
		repo:       p.Repo,
		gate:       p.Gate,
		locker:     p.Locker,
		executor:   p.Executor,
		dispatcher: p.Dispatcher,
		metrics:    p.Metrics,
	}
}

func (s *Service) Compute(gross int64, feeRate, reserveRate float64) (domain.Breakdown, error) {
	return computeBreakdown(gross, feeRate, reserveRate)
}

func (s *Service) Initiate(ctx context.Context, ref payee.Ref, eventID snowflake.ID, gross int64) (domain.PayoutRecord, error) {
	if ref.IsZero() {
		return domain.PayoutRecord{}, payee.ErrInvalidPayee
	}
	if gross <= 0 {
		return domain.PayoutRecord{}, domain.ErrInvalidAmount
	}

	// The gate decision and the insert happen under the same payee lock,
	// so two concurrent payouts for one payee are evaluated in sequence.
	unlock := s.locker.Lock(ref)
	decision, err := s.gate.Evaluate(ctx, ref)
	if err != nil {
		unlock()
		return domain.PayoutRecord{}, err
	}
	if decision.Required {
		unlock()
		s.metrics.IncComplianceBlocked()
		s.metrics.IncPayoutInitiated("blocked")
		s.log.Info("payout blocked by compliance gate",
			zap.String("payee", ref.String()),
			zap.Int64("current_earnings", decision.CurrentEarnings),
			zap.Int64("threshold", decision.Threshold),
		)
		return domain.PayoutRecord{}, &domain.ComplianceBlockedError{
			Reason:          decision.Reason,
			CurrentEarnings: decision.CurrentEarnings,
			Threshold:       decision.Threshold,
		}
	}

	rates := s.settlement.Get()
	breakdown, err := computeBreakdown(gross, rates.FeeRate, rates.ReserveRate)
	if err != nil {
		unlock()
		return domain.PayoutRecord{}, err
	}

	record := domain.PayoutRecord{
		ID:            s.genID.Generate(),
		PayeeType:     ref.Type,
		PayeeID:       ref.ID,
		EventID:       eventID,
		GrossAmount:   gross,
		FeeRate:       rates.FeeRate,
		FeeAmount:     breakdown.FeeAmount,
		ReserveRate:   rates.ReserveRate,
		ReserveAmount: breakdown.ReserveAmount,
		NetAmount:     breakdown.NetAmount,
		Status:        domain.StatusProcessing,
		InitiatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		unlock()
		return domain.PayoutRecord{}, err
	}
	unlock()

	// The record now exists in processing. From here on, state finalization
	// runs on a context that survives a client disconnect, or a cancelled
	// request would strand the record (worst case after money moved).
	finalizeCtx := context.WithoutCancel(ctx)

	s.dispatch(finalizeCtx, notify.EventPayoutProcessing, &record)

	retries, err := s.executeWithRetry(ctx, transfer.Request{
		PayoutID: record.ID,
		Payee:    ref,
		Amount:   record.NetAmount,
		Kind:     transfer.KindNet,
	})
	if err != nil {
		reason := fmt.Sprintf("net transfer failed after %d retries: %v", retries, err)
		if _, herr := s.repo.MarkHeld(finalizeCtx, s.db, record.ID, domain.StatusProcessing, reason, retries); herr != nil {
			return domain.PayoutRecord{}, herr
		}
		record.Status = domain.StatusHeld
		record.HoldReason = &reason
		record.RetryCount = retries
		s.metrics.IncPayoutHeld("transfer_failed")
		s.metrics.IncPayoutInitiated("held")
		s.log.Warn("payout held",
			zap.String("payout_id", record.ID.String()),
			zap.String("reason", reason),
		)
		s.dispatch(finalizeCtx, notify.EventPayoutHeld, &record)
		return record, nil
	}

	completedAt := s.clock.Now()
	releaseDue := completedAt.Add(s.cfg.ReserveHoldPeriod)
	rows, err := s.repo.MarkCompleted(finalizeCtx, s.db, record.ID, completedAt, releaseDue, retries)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if rows == 0 {
		return domain.PayoutRecord{}, domain.ErrInvalidStateTransition
	}
	record.Status = domain.StatusCompleted
	record.CompletedAt = &completedAt
	record.ReserveReleaseDue = &releaseDue
	record.RetryCount = retries

	s.metrics.IncPayoutCompleted()
	s.metrics.IncPayoutInitiated("completed")
	s.dispatch(finalizeCtx, notify.EventPayoutCompleted, &record)
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.PayoutRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if record == nil {
		return domain.PayoutRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) ResolveHold(ctx context.Context, id snowflake.ID, reviewerRef string, resolution domain.HoldResolution) (domain.PayoutRecord, error) {
	if strings.TrimSpace(reviewerRef) == "" {
		return domain.PayoutRecord{}, domain.ErrMissingReviewer
	}
	if resolution != domain.ResolutionCompleted && resolution != domain.ResolutionCancelled {
		return domain.PayoutRecord{}, domain.ErrInvalidResolution
	}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if record == nil {
		return domain.PayoutRecord{}, domain.ErrNotFound
	}
	if record.Status != domain.StatusHeld {
		return domain.PayoutRecord{}, domain.ErrInvalidStateTransition
	}

	if resolution == domain.ResolutionCancelled {
		rows, err := s.repo.ResolveHeld(ctx, s.db, id, domain.StatusCancelled, nil, nil)
		if err != nil {
			return domain.PayoutRecord{}, err
		}
		if rows == 0 {
			return domain.PayoutRecord{}, domain.ErrInvalidStateTransition
		}
		record.Status = domain.StatusCancelled
		record.HoldReason = nil
		s.log.Info("held payout cancelled",
			zap.String("payout_id", id.String()),
			zap.String("reviewer", reviewerRef),
		)
		s.dispatch(ctx, notify.EventPayoutCancelled, record)
		return *record, nil
	}

	// A reviewer-approved completion retries the net transfer. Exhaustion
	// leaves the payout held for another review round.
	retries, err := s.executeWithRetry(ctx, transfer.Request{
		PayoutID: record.ID,
		Payee:    record.Payee(),
		Amount:   record.NetAmount,
		Kind:     transfer.KindNet,
	})
	if err != nil {
		if uerr := s.repo.UpdateRetryCount(ctx, s.db, id, record.RetryCount+retries); uerr != nil {
			return domain.PayoutRecord{}, uerr
		}
		return domain.PayoutRecord{}, err
	}

	// Money moved; the completion write must land even if the request
	// context died during the transfer.
	finalizeCtx := context.WithoutCancel(ctx)
	completedAt := s.clock.Now()
	releaseDue := completedAt.Add(s.cfg.ReserveHoldPeriod)
	rows, err := s.repo.ResolveHeld(finalizeCtx, s.db, id, domain.StatusCompleted, &completedAt, &releaseDue)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if rows == 0 {
		return domain.PayoutRecord{}, domain.ErrInvalidStateTransition
	}
	record.Status = domain.StatusCompleted
	record.CompletedAt = &completedAt
	record.ReserveReleaseDue = &releaseDue
	record.HoldReason = nil

	s.metrics.IncPayoutCompleted()
	s.log.Info("held payout completed",
		zap.String("payout_id", id.String()),
		zap.String("reviewer", reviewerRef),
	)
	s.dispatch(finalizeCtx, notify.EventPayoutCompleted, record)
	return *record, nil
}

func (s *Service) FlagChargeback(ctx context.Context, id snowflake.ID) error {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}

	rows, err := s.repo.SetChargebackFlag(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Reserve already released or payout never completed; the flag has
		// nothing left to protect.
		return domain.ErrInvalidStateTransition
	}
	s.log.Warn("payout flagged for chargeback", zap.String("payout_id", id.String()))
	return nil
}

func (s *Service) ReleaseReserve(ctx context.Context, id snowflake.ID) error {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}
	return s.releaseOne(ctx, record, s.clock.Now())
}

func (s *Service) ReleaseDueReserves(ctx context.Context, now time.Time, limit int) (int, error) {
	records, err := s.repo.ListReserveDue(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, record := range records {
		if err := s.releaseOne(ctx, record, now); err != nil {
			// One bad record never stops the sweep; the next run picks it
			// up again.
			s.log.Error("reserve release failed",
				zap.String("payout_id", record.ID.String()),
				zap.Error(err),
			)
			continue
		}
		released++
	}
	return released, nil
}

func (s *Service) releaseOne(ctx context.Context, record *domain.PayoutRecord, now time.Time) error {
	if record.ChargebackFlag {
		return domain.ErrChargebackFlagged
	}
	if record.Status != domain.StatusCompleted {
		return domain.ErrInvalidStateTransition
	}
	if record.ReserveReleaseDue == nil || record.ReserveReleaseDue.After(now) {
		return domain.ErrReserveNotDue
	}

	if _, err := s.executeWithRetry(ctx, transfer.Request{
		PayoutID: record.ID,
		Payee:    record.Payee(),
		Amount:   record.ReserveAmount,
		Kind:     transfer.KindReserve,
	}); err != nil {
		// The record stays completed; the next sweep retries the release.
		return err
	}

	finalizeCtx := context.WithoutCancel(ctx)
	rows, err := s.repo.MarkReserveReleased(finalizeCtx, s.db, record.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInvalidStateTransition
	}
	record.Status = domain.StatusReserveReleased

	s.metrics.IncReserveReleased()
	s.dispatch(finalizeCtx, notify.EventReserveReleased, record)
	return nil
}

// executeWithRetry runs a transfer with bounded exponential backoff. It
// returns the retry count alongside the terminal error, if any.
func (s *Service) executeWithRetry(ctx context.Context, req transfer.Request) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.TransferMaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncTransferRetry()
			if err := sleepCtx(ctx, s.cfg.TransferBaseDelay<<(attempt-1)); err != nil {
				return attempt, err
			}
		}
		lastErr = s.executor.Execute(ctx, req)
		if lastErr == nil {
			return attempt, nil
		}
	}
	return s.cfg.TransferMaxRetries, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) dispatch(ctx context.Context, eventType string, record *domain.PayoutRecord) {
	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:     eventType,
		Payee:    record.Payee(),
		TargetID: record.ID,
		Metadata: map[string]any{
			"status":     string(record.Status),
			"net_amount": record.NetAmount,
		},
	})
}
