package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	auditrepository "github.com/bidworks/clearhouse/internal/audit/repository"
	auditservice "github.com/bidworks/clearhouse/internal/audit/service"
	"github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/compliance/repository"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/providers/notify"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type complianceFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	audit auditdomain.Service
}

func newFixture(t *testing.T) *complianceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.TaxRecord{},
		&domain.ComplianceState{},
		&auditdomain.AuditEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		TINVaultSecret:    "test-secret",
		TaxRecordValidity: time.Hour,
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

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        cfg,
		GenID:      node,
		Repo:       repository.Provide(),
		AuditRepo:  auditRepo,
		Vault:      vault,
		Locker:     payee.NewLocker(),
		Dispatcher: notify.NoOpDispatcher{},
	})

	return &complianceFixture{svc: svc, db: db, node: node, audit: auditSvc}
}

func (f *complianceFixture) ref(t *testing.T) payee.Ref {
	t.Helper()
	ref, err := payee.NewRef(payee.TypeUser, f.node.Generate())
	require.NoError(t, err)
	return ref
}

func validSubmit(ref payee.Ref) domain.SubmitRequest {
	yes := true
	return domain.SubmitRequest{
		Payee:             ref,
		FormType:          domain.FormTypeW9,
		LegalName:         "Jordan Example",
		TaxClassification: domain.ClassificationIndividual,
		TINType:           tinvault.TINTypeSSN,
		TIN:               "123-45-6789",
		Address: domain.Address{
			Line1:      "1 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "US",
		},
		IsUSPerson:    &yes,
		SignatureName: "Jordan Example",
		SignatureDate: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *complianceFixture) eventTypes(t *testing.T, ref payee.Ref) []auditdomain.EventType {
	t.Helper()
	resp, err := f.audit.List(context.Background(), auditdomain.ListEventsRequest{Subject: ref})
	require.NoError(t, err)
	types := make([]auditdomain.EventType, 0, len(resp.Events))
	for _, e := range resp.Events {
		types = append(types, e.EventType)
	}
	return types
}

func TestSubmitCreatesPendingRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.Equal(t, "6789", record.TINLastFour)
	assert.NotContains(t, record.EncryptedTIN, "123456789")

	status, err := f.svc.CurrentStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)

	assert.Contains(t, f.eventTypes(t, ref), auditdomain.EventTypeTaxInfoSubmitted)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	req := validSubmit(ref)
	req.FormType = "w2"
	_, err := f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidFormType)

	req = validSubmit(ref)
	req.LegalName = "  "
	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingLegalName)

	req = validSubmit(ref)
	req.SignatureName = ""
	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingSignature)

	req = validSubmit(ref)
	req.TIN = "000-12-3456"
	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, tinvault.ErrInvalidTIN)

	req = validSubmit(ref)
	req.TaxClassification = "nonprofit"
	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidClassification)
}

func TestVerifyApprovesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)

	require.NoError(t, f.svc.Verify(ctx, record.ID, "reviewer-1", domain.DecisionVerified))

	status, err := f.svc.CurrentStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, status)

	resp, err := f.svc.Status(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, resp.Status)
	assert.Equal(t, "XXX-XX-6789", resp.MaskedTIN)
	assert.False(t, resp.RequiresUpdate)

	// The first decision stands.
	err = f.svc.Verify(ctx, record.ID, "reviewer-2", domain.DecisionInvalid)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	assert.Contains(t, f.eventTypes(t, ref), auditdomain.EventTypeTaxInfoVerified)
}

func TestVerifyRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)

	require.NoError(t, f.svc.Verify(ctx, record.ID, "reviewer-1", domain.DecisionInvalid))

	resp, err := f.svc.Status(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInvalid, resp.Status)
	assert.True(t, resp.RequiresUpdate)

	assert.Contains(t, f.eventTypes(t, ref), auditdomain.EventTypeTaxInfoRejected)
}

func TestVerifyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)

	err = f.svc.Verify(ctx, record.ID, "", domain.DecisionVerified)
	assert.ErrorIs(t, err, domain.ErrMissingReviewer)

	err = f.svc.Verify(ctx, record.ID, "reviewer-1", domain.Decision("maybe"))
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	err = f.svc.Verify(ctx, f.node.Generate(), "reviewer-1", domain.DecisionVerified)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusForUnknownPayee(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Status(context.Background(), f.ref(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotSubmitted, resp.Status)
	assert.True(t, resp.RequiresUpdate)
	assert.Empty(t, resp.MaskedTIN)
}

func TestResubmissionReplacesCurrentRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	first, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, first.ID, "reviewer-1", domain.DecisionInvalid))

	second, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	status, err := f.svc.CurrentStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)
}

func TestDecryptTINFor1099(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)

	resp, err := f.svc.DecryptTINFor1099(ctx, record.ID, "reviewer-1", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "123456789", resp.TIN)
	assert.Equal(t, "XXX-XX-6789", resp.MaskedDisplay)

	assert.Contains(t, f.eventTypes(t, ref), auditdomain.EventTypeTINDecrypted)

	_, err = f.svc.DecryptTINFor1099(ctx, record.ID, "", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrMissingReviewer)
}

func TestExpireRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := f.ref(t)

	record, err := f.svc.Submit(ctx, validSubmit(ref))
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, record.ID, "reviewer-1", domain.DecisionVerified))

	// Validity is one hour in this fixture; nothing expires yet.
	expired, err := f.svc.ExpireRecords(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Zero(t, expired)

	expired, err = f.svc.ExpireRecords(ctx, time.Now().UTC().Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	status, err := f.svc.CurrentStatus(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, status)

	assert.Contains(t, f.eventTypes(t, ref), auditdomain.EventTypeTaxInfoExpired)
}
