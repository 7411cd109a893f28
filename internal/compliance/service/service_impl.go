package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/providers/notify"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Repo       domain.Repository
	AuditRepo  auditdomain.Repository
	Vault      *tinvault.Vault
	Locker     *payee.Locker
	Dispatcher notify.Dispatcher
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	repo       domain.Repository
	auditRepo  auditdomain.Repository
	vault      *tinvault.Vault
	locker     *payee.Locker
	dispatcher notify.Dispatcher
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("compliance.service"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		repo:       p.Repo,
		auditRepo:  p.AuditRepo,
		vault:      p.Vault,
		locker:     p.Locker,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.TaxRecord, error) {
	if req.Payee.IsZero() {
		return domain.TaxRecord{}, payee.ErrInvalidPayee
	}
	if !req.FormType.Valid() {
		return domain.TaxRecord{}, domain.ErrInvalidFormType
	}
	legalName := strings.TrimSpace(req.LegalName)
	if legalName == "" {
		return domain.TaxRecord{}, domain.ErrMissingLegalName
	}
	signatureName := strings.TrimSpace(req.SignatureName)
	if signatureName == "" || req.SignatureDate.IsZero() {
		return domain.TaxRecord{}, domain.ErrMissingSignature
	}
	if !req.TINType.Valid() {
		return domain.TaxRecord{}, domain.ErrInvalidTINType
	}
	if !tinvault.Validate(req.TIN, req.TINType) {
		return domain.TaxRecord{}, tinvault.ErrInvalidTIN
	}
	if req.FormType == domain.FormTypeW9 && !req.TaxClassification.Valid() {
		return domain.TaxRecord{}, domain.ErrInvalidClassification
	}

	ciphertext, lastFour, err := s.vault.Encrypt(req.TIN)
	if err != nil {
		return domain.TaxRecord{}, err
	}

	now := time.Now().UTC()
	record := domain.TaxRecord{
		ID:                s.genID.Generate(),
		PayeeType:         req.Payee.Type,
		PayeeID:           req.Payee.ID,
		FormType:          req.FormType,
		LegalName:         legalName,
		TaxClassification: req.TaxClassification,
		TINType:           req.TINType,
		EncryptedTIN:      ciphertext,
		TINLastFour:       lastFour,
		Address:           addressMap(req.Address),
		IsUSPerson:        req.IsUSPerson,
		IsExemptPayee:     req.IsExemptPayee,
		SignatureName:     signatureName,
		SignatureDate:     req.SignatureDate.UTC(),
		Status:            domain.StatusPending,
		CreatedAt:         now,
	}
	if businessName := strings.TrimSpace(req.BusinessName); businessName != "" {
		record.BusinessName = &businessName
	}
	// Exempt payee codes remain unvalidated free text; there is no
	// authoritative code list wired in.
	if code := strings.TrimSpace(req.ExemptPayeeCode); code != "" {
		record.ExemptPayeeCode = &code
	}

	unlock := s.locker.Lock(req.Payee)
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRecord(ctx, tx, &record); err != nil {
			return err
		}
		if err := s.repo.UpsertState(ctx, tx, &domain.ComplianceState{
			PayeeType:       req.Payee.Type,
			PayeeID:         req.Payee.ID,
			CurrentRecordID: record.ID,
			Status:          domain.StatusPending,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, auditEntry{
			actor:     auditdomain.ActorTypeUser,
			subject:   req.Payee,
			eventType: auditdomain.EventTypeTaxInfoSubmitted,
			ipAddress: req.IPAddress,
			metadata: map[string]any{
				"record_id": record.ID.String(),
				"form_type": string(record.FormType),
				"tin_type":  string(record.TINType),
			},
		})
	})
	if err != nil {
		return domain.TaxRecord{}, err
	}

	return record, nil
}

func (s *Service) Verify(ctx context.Context, recordID snowflake.ID, reviewerRef string, decision domain.Decision) error {
	reviewer := strings.TrimSpace(reviewerRef)
	if reviewer == "" {
		return domain.ErrMissingReviewer
	}
	if decision != domain.DecisionVerified && decision != domain.DecisionInvalid {
		return domain.ErrInvalidDecision
	}

	record, err := s.repo.FindRecordByID(ctx, s.db, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}

	unlock := s.locker.Lock(record.Payee())
	defer unlock()

	now := time.Now().UTC()
	status := domain.StatusVerified
	eventType := auditdomain.EventTypeTaxInfoVerified
	notifyEvent := notify.EventComplianceVerified
	var expiresAt *time.Time
	if decision == domain.DecisionInvalid {
		status = domain.StatusInvalid
		eventType = auditdomain.EventTypeTaxInfoRejected
		notifyEvent = notify.EventComplianceRejected
	} else {
		due := now.Add(s.cfg.TaxRecordValidity)
		expiresAt = &due
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.MarkReviewed(ctx, tx, recordID, status, now, reviewer, expiresAt)
		if err != nil {
			return err
		}
		// Zero rows means the record already left pending: the first
		// decision stands and the second call reports the conflict.
		if updated == 0 {
			return domain.ErrInvalidStateTransition
		}

		state, err := s.repo.FindState(ctx, tx, record.Payee())
		if err != nil {
			return err
		}
		if state != nil && state.CurrentRecordID == recordID {
			state.Status = status
			state.UpdatedAt = now
			if err := s.repo.UpsertState(ctx, tx, state); err != nil {
				return err
			}
		}

		return s.appendAudit(ctx, tx, auditEntry{
			actor:     auditdomain.ActorTypeUser,
			actorID:   &reviewer,
			subject:   record.Payee(),
			eventType: eventType,
			metadata: map[string]any{
				"record_id": recordID.String(),
				"decision":  string(decision),
			},
		})
	})
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:     notifyEvent,
		Payee:    record.Payee(),
		TargetID: recordID,
	})
	return nil
}

func (s *Service) CurrentStatus(ctx context.Context, ref payee.Ref) (domain.RecordStatus, error) {
	if ref.IsZero() {
		return "", payee.ErrInvalidPayee
	}
	state, err := s.repo.FindState(ctx, s.db, ref)
	if err != nil {
		return "", err
	}
	if state == nil {
		return domain.StatusNotSubmitted, nil
	}
	return state.Status, nil
}

func (s *Service) Status(ctx context.Context, ref payee.Ref) (domain.StatusResponse, error) {
	if ref.IsZero() {
		return domain.StatusResponse{}, payee.ErrInvalidPayee
	}

	state, err := s.repo.FindState(ctx, s.db, ref)
	if err != nil {
		return domain.StatusResponse{}, err
	}
	if state == nil {
		return domain.StatusResponse{
			Status:         domain.StatusNotSubmitted,
			RequiresUpdate: true,
		}, nil
	}

	record, err := s.repo.FindRecordByID(ctx, s.db, state.CurrentRecordID)
	if err != nil {
		return domain.StatusResponse{}, err
	}
	if record == nil {
		return domain.StatusResponse{}, domain.ErrNotFound
	}

	return domain.StatusResponse{
		Status:         state.Status,
		TINLastFour:    record.TINLastFour,
		TINType:        record.TINType,
		MaskedTIN:      tinvault.Mask(record.TINLastFour, record.TINType),
		RequiresUpdate: state.Status != domain.StatusVerified && state.Status != domain.StatusPending,
	}, nil
}

func (s *Service) DecryptTINFor1099(ctx context.Context, recordID snowflake.ID, reviewerRef, ipAddress string) (domain.DecryptedTIN, error) {
	reviewer := strings.TrimSpace(reviewerRef)
	if reviewer == "" {
		return domain.DecryptedTIN{}, domain.ErrMissingReviewer
	}

	record, err := s.repo.FindRecordByID(ctx, s.db, recordID)
	if err != nil {
		return domain.DecryptedTIN{}, err
	}
	if record == nil {
		return domain.DecryptedTIN{}, domain.ErrNotFound
	}

	tin, err := s.vault.Decrypt(ctx, record.EncryptedTIN, tinvault.AccessContext{
		Actor:     auditdomain.ActorTypeUser,
		ActorID:   &reviewer,
		Subject:   record.Payee(),
		Purpose:   "1099 information reporting",
		IPAddress: ipAddress,
	})
	if err != nil {
		return domain.DecryptedTIN{}, err
	}

	return domain.DecryptedTIN{
		TIN:           tin,
		TINType:       record.TINType,
		MaskedDisplay: tinvault.Mask(record.TINLastFour, record.TINType),
	}, nil
}

func (s *Service) ExpireRecords(ctx context.Context, now time.Time, limit int) (int, error) {
	records, err := s.repo.ListExpirable(ctx, s.db, now.UTC(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, record := range records {
		if record == nil {
			continue
		}
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if err := s.expireOne(ctx, record, now.UTC()); err != nil {
			s.log.Warn("failed to expire tax record",
				zap.String("record_id", record.ID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, record *domain.TaxRecord, now time.Time) error {
	unlock := s.locker.Lock(record.Payee())
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.MarkExpired(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		if updated == 0 {
			return nil
		}

		state, err := s.repo.FindState(ctx, tx, record.Payee())
		if err != nil {
			return err
		}
		if state != nil && state.CurrentRecordID == record.ID {
			state.Status = domain.StatusExpired
			state.UpdatedAt = now
			if err := s.repo.UpsertState(ctx, tx, state); err != nil {
				return err
			}
		}

		return s.appendAudit(ctx, tx, auditEntry{
			actor:     auditdomain.ActorTypeSystem,
			subject:   record.Payee(),
			eventType: auditdomain.EventTypeTaxInfoExpired,
			metadata: map[string]any{
				"record_id": record.ID.String(),
			},
		})
	})
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:     notify.EventComplianceExpired,
		Payee:    record.Payee(),
		TargetID: record.ID,
	})
	return nil
}

type auditEntry struct {
	actor     auditdomain.ActorType
	actorID   *string
	subject   payee.Ref
	eventType auditdomain.EventType
	ipAddress string
	metadata  map[string]any
}

// appendAudit writes the audit row inside the caller's transaction so the
// lifecycle event and its audit record commit or roll back together.
func (s *Service) appendAudit(ctx context.Context, tx *gorm.DB, entry auditEntry) error {
	event := auditdomain.AuditEvent{
		ID:          s.genID.Generate(),
		ActorType:   entry.actor,
		ActorID:     entry.actorID,
		SubjectType: string(entry.subject.Type),
		SubjectID:   entry.subject.ID,
		EventType:   entry.eventType,
		Metadata:    datatypes.JSONMap(entry.metadata),
		CreatedAt:   time.Now().UTC(),
	}
	if ip := strings.TrimSpace(entry.ipAddress); ip != "" {
		event.IPAddress = &ip
	}
	if event.Metadata == nil {
		event.Metadata = datatypes.JSONMap{}
	}
	return s.auditRepo.Insert(ctx, tx, &event)
}

func addressMap(addr domain.Address) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	set := func(key, value string) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out[key] = trimmed
		}
	}
	set("line1", addr.Line1)
	set("line2", addr.Line2)
	set("city", addr.City)
	set("state", addr.State)
	set("postal_code", addr.PostalCode)
	set("country", addr.Country)
	return out
}
