package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	auditrepository "github.com/bidworks/clearhouse/internal/audit/repository"
	auditservice "github.com/bidworks/clearhouse/internal/audit/service"
	"github.com/bidworks/clearhouse/internal/clock"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	compliancerepository "github.com/bidworks/clearhouse/internal/compliance/repository"
	complianceservice "github.com/bidworks/clearhouse/internal/compliance/service"
	"github.com/bidworks/clearhouse/internal/config"
	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	earningsrepository "github.com/bidworks/clearhouse/internal/earnings/repository"
	earningsservice "github.com/bidworks/clearhouse/internal/earnings/service"
	"github.com/bidworks/clearhouse/internal/gate"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/bidworks/clearhouse/internal/payout/repository"
	"github.com/bidworks/clearhouse/internal/providers/notify"
	"github.com/bidworks/clearhouse/internal/providers/transfer"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scriptedExecutor fails the first failures calls, then succeeds. onCall,
// when set, runs before each attempt is scored.
type scriptedExecutor struct {
	failures int
	calls    int
	requests []transfer.Request
	onCall   func()
}

func (e *scriptedExecutor) Execute(ctx context.Context, req transfer.Request) error {
	e.calls++
	e.requests = append(e.requests, req)
	if e.onCall != nil {
		e.onCall()
	}
	if e.calls <= e.failures {
		return transfer.ErrTransferFailed
	}
	return nil
}

type payoutFixture struct {
	svc           domain.Service
	db            *gorm.DB
	node          *snowflake.Node
	clock         *clock.FakeClock
	executor      *scriptedExecutor
	earningsSvc   earningsdomain.Service
	complianceSvc compliancedomain.Service
	cfg           config.Config
}

func newFixture(t *testing.T) *payoutFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.PayoutRecord{},
		&earningsdomain.SettlementEntry{},
		&compliancedomain.TaxRecord{},
		&compliancedomain.ComplianceState{},
		&auditdomain.AuditEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		TINVaultSecret:     "test-secret",
		TaxRecordValidity:  365 * 24 * time.Hour,
		ReserveHoldPeriod:  30 * 24 * time.Hour,
		TransferMaxRetries: 3,
		TransferBaseDelay:  time.Microsecond,
	}

	auditRepo := auditrepository.Provide()
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditRepo,
	})

	vault, err := tinvault.New(tinvault.Params{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		AuditSvc: auditSvc,
	})
	require.NoError(t, err)

	locker := payee.NewLocker()

	complianceSvc := complianceservice.New(complianceservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        cfg,
		GenID:      node,
		Repo:       compliancerepository.Provide(),
		AuditRepo:  auditRepo,
		Vault:      vault,
		Locker:     locker,
		Dispatcher: notify.NoOpDispatcher{},
	})

	earningsSvc := earningsservice.New(earningsservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  earningsrepository.Provide(),
	})

	fakeClock := clock.NewFakeClock(time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC))
	holder := config.NewStaticSettlementHolder(config.SettlementConfig{
		FeeRate:                 0.05,
		ReserveRate:             0.10,
		ReportingThresholdCents: 60_000,
	})

	g := gate.New(gate.Params{
		Log:           zap.NewNop(),
		Clock:         fakeClock,
		Settlement:    holder,
		EarningsSvc:   earningsSvc,
		ComplianceSvc: complianceSvc,
	})

	executor := &scriptedExecutor{}
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        cfg,
		GenID:      node,
		Clock:      fakeClock,
		Settlement: holder,
		Repo:       repository.Provide(),
		Gate:       g,
		Locker:     locker,
		Executor:   executor,
		Dispatcher: notify.NoOpDispatcher{},
	})

	return &payoutFixture{
		svc:           svc,
		db:            db,
		node:          node,
		clock:         fakeClock,
		executor:      executor,
		earningsSvc:   earningsSvc,
		complianceSvc: complianceSvc,
		cfg:           cfg,
	}
}

func (f *payoutFixture) ref(t *testing.T) payee.Ref {
	t.Helper()
	ref, err := payee.NewRef(payee.TypeUser, f.node.Generate())
	require.NoError(t, err)
	return ref
}

func (f *payoutFixture) addEarnings(t *testing.T, ref payee.Ref, amount int64) {
	t.Helper()
	finalizedAt := f.clock.Now()
	_, err := f.earningsSvc.RecordEntry(context.Background(), earningsdomain.SettlementEntry{
		PayeeType:   ref.Type,
		PayeeID:     ref.ID,
		EventID:     f.node.Generate(),
		GrossAmount: amount,
		Finalized:   true,
		FinalizedAt: &finalizedAt,
	})
	require.NoError(t, err)
}

func (f *payoutFixture) verifyCompliance(t *testing.T, ref payee.Ref) {
	t.Helper()
	yes := true
	record, err := f.complianceSvc.Submit(context.Background(), compliancedomain.SubmitRequest{
		Payee:             ref,
		FormType:          compliancedomain.FormTypeW9,
		LegalName:         "Jordan Example",
		TaxClassification: compliancedomain.ClassificationIndividual,
		TINType:           tinvault.TINTypeSSN,
		TIN:               "123-45-6789",
		IsUSPerson:        &yes,
		SignatureName:     "Jordan Example",
		SignatureDate:     time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, f.complianceSvc.Verify(context.Background(), record.ID, "reviewer-1", compliancedomain.DecisionVerified))
}

func TestInitiateBelowThresholdProceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 59_999)

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, int64(500), record.FeeAmount)
	assert.Equal(t, int64(1_000), record.ReserveAmount)
	assert.Equal(t, int64(8_500), record.NetAmount)
	require.NotNil(t, record.ReserveReleaseDue)
	assert.Equal(t, f.clock.Now().Add(f.cfg.ReserveHoldPeriod), *record.ReserveReleaseDue)

	require.Len(t, f.executor.requests, 1)
	assert.Equal(t, transfer.KindNet, f.executor.requests[0].Kind)
	assert.Equal(t, int64(8_500), f.executor.requests[0].Amount)
}

func TestInitiateBlockedAtThresholdWithoutVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 60_000)

	_, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrComplianceBlocked)

	var blocked *domain.ComplianceBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, int64(60_000), blocked.CurrentEarnings)
	assert.Equal(t, int64(60_000), blocked.Threshold)
	assert.NotEmpty(t, blocked.Reason)

	// Nothing was persisted and no transfer was attempted.
	var count int64
	require.NoError(t, f.db.Model(&domain.PayoutRecord{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.executor.calls)
}

func TestInitiateVerifiedAboveThresholdProceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 200_000)
	f.verifyCompliance(t, ref)

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 20_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, record.Status)
}

func TestInitiateRetriesThenHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)
	f.executor.failures = 10 // never succeeds within the retry budget

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHeld, record.Status)
	assert.Equal(t, f.cfg.TransferMaxRetries, record.RetryCount)
	require.NotNil(t, record.HoldReason)
	assert.Contains(t, *record.HoldReason, "transfer failed")
	assert.Equal(t, f.cfg.TransferMaxRetries+1, f.executor.calls)

	stored, err := f.svc.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHeld, stored.Status)
}

func TestInitiateRecoversWithinRetryBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)
	f.executor.failures = 2

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, 2, record.RetryCount)
	assert.Equal(t, 3, f.executor.calls)
}

func TestInitiateClientDisconnectDuringTransferStillHolds(t *testing.T) {
	f := newFixture(t)
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)

	// The caller goes away mid-transfer while the rail keeps failing. The
	// record must still land in held, not stay stranded in processing.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.executor.failures = 10
	f.executor.onCall = cancel

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHeld, record.Status)

	stored, err := f.svc.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHeld, stored.Status)

	// And the hold is recoverable through the normal review path.
	f.executor.failures = 0
	f.executor.onCall = nil
	resolved, err := f.svc.ResolveHold(context.Background(), record.ID, "reviewer-1", domain.ResolutionCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resolved.Status)
}

func TestInitiateClientDisconnectAfterTransferStillCompletes(t *testing.T) {
	f := newFixture(t)
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)

	// The transfer succeeds but the request context dies before the
	// completion write. The money moved, so the record must say completed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.executor.onCall = cancel

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, record.Status)

	stored, err := f.svc.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestResolveHoldCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)
	f.executor.failures = 10

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	require.Equal(t, domain.StatusHeld, record.Status)

	// The rail recovered; the reviewer approves completion.
	f.executor.failures = 0
	resolved, err := f.svc.ResolveHold(ctx, record.ID, "reviewer-1", domain.ResolutionCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resolved.Status)
	assert.Nil(t, resolved.HoldReason)
	require.NotNil(t, resolved.ReserveReleaseDue)
}

func TestResolveHoldCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)
	f.executor.failures = 10

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)

	resolved, err := f.svc.ResolveHold(ctx, record.ID, "reviewer-1", domain.ResolutionCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, resolved.Status)

	// A settled payout cannot be resolved again.
	_, err = f.svc.ResolveHold(ctx, record.ID, "reviewer-1", domain.ResolutionCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestResolveHoldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolveHold(ctx, f.node.Generate(), "", domain.ResolutionCompleted)
	assert.ErrorIs(t, err, domain.ErrMissingReviewer)

	_, err = f.svc.ResolveHold(ctx, f.node.Generate(), "reviewer-1", domain.HoldResolution("retry"))
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	_, err = f.svc.ResolveHold(ctx, f.node.Generate(), "reviewer-1", domain.ResolutionCompleted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserveReleaseAfterHoldPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, record.Status)

	// Not due yet.
	released, err := f.svc.ReleaseDueReserves(ctx, f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, released)

	err = f.svc.ReleaseReserve(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrReserveNotDue)

	f.clock.Advance(f.cfg.ReserveHoldPeriod + time.Hour)

	released, err = f.svc.ReleaseDueReserves(ctx, f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	stored, err := f.svc.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserveReleased, stored.Status)

	last := f.executor.requests[len(f.executor.requests)-1]
	assert.Equal(t, transfer.KindReserve, last.Kind)
	assert.Equal(t, int64(1_000), last.Amount)

	// The sweep is idempotent.
	released, err = f.svc.ReleaseDueReserves(ctx, f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestChargebackBlocksReserveRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)

	require.NoError(t, f.svc.FlagChargeback(ctx, record.ID))

	f.clock.Advance(f.cfg.ReserveHoldPeriod + time.Hour)

	released, err := f.svc.ReleaseDueReserves(ctx, f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, released)

	err = f.svc.ReleaseReserve(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrChargebackFlagged)
}

func TestFlagChargebackValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)
	f.addEarnings(t, ref, 1_000)

	err := f.svc.FlagChargeback(ctx, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	record, err := f.svc.Initiate(ctx, ref, f.node.Generate(), 10_000)
	require.NoError(t, err)

	f.clock.Advance(f.cfg.ReserveHoldPeriod + time.Hour)
	released, err := f.svc.ReleaseDueReserves(ctx, f.clock.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, released)

	// Reserve already released; there is nothing left to protect.
	err = f.svc.FlagChargeback(ctx, record.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestInitiateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	_, err := f.svc.Initiate(ctx, payee.Ref{}, f.node.Generate(), 10_000)
	assert.ErrorIs(t, err, payee.ErrInvalidPayee)

	_, err = f.svc.Initiate(ctx, ref, f.node.Generate(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.GetByID(ctx, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
