package repository

import (
	"context"
	"time"

	"github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, record *domain.TaxRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_records (
			id, payee_type, payee_id, form_type, legal_name, business_name,
			tax_classification, tin_type, encrypted_tin, tin_last_four,
			address, is_us_person, is_exempt_payee, exempt_payee_code,
			signature_name, signature_date, status, verified_at, verified_by,
			created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PayeeType,
		record.PayeeID,
		record.FormType,
		record.LegalName,
		record.BusinessName,
		record.TaxClassification,
		record.TINType,
		record.EncryptedTIN,
		record.TINLastFour,
		record.Address,
		record.IsUSPerson,
		record.IsExemptPayee,
		record.ExemptPayeeCode,
		record.SignatureName,
		record.SignatureDate,
		record.Status,
		record.VerifiedAt,
		record.VerifiedBy,
		record.CreatedAt,
		record.ExpiresAt,
	).Error
}

func (r *repo) FindRecordByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TaxRecord, error) {
	var record domain.TaxRecord
	err := db.WithContext(ctx).
		Model(&domain.TaxRecord{}).
		Where("id = ?", id).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) MarkReviewed(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.RecordStatus, verifiedAt time.Time, verifiedBy string, expiresAt *time.Time) (int64, error) {
	// The status guard makes the update race-safe: a record that already
	// left pending is never touched.
	result := db.WithContext(ctx).Exec(
		`UPDATE tax_records
		 SET status = ?, verified_at = ?, verified_by = ?, expires_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		verifiedAt,
		verifiedBy,
		expiresAt,
		id,
		domain.StatusPending,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tax_records SET status = ? WHERE id = ? AND status = ?`,
		domain.StatusExpired,
		id,
		domain.StatusVerified,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindState(ctx context.Context, db *gorm.DB, ref payee.Ref) (*domain.ComplianceState, error) {
	var state domain.ComplianceState
	err := db.WithContext(ctx).
		Model(&domain.ComplianceState{}).
		Where("payee_type = ? AND payee_id = ?", ref.Type, ref.ID).
		Take(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *repo) UpsertState(ctx context.Context, db *gorm.DB, state *domain.ComplianceState) error {
	existing, err := r.FindState(ctx, db, payee.Ref{Type: state.PayeeType, ID: state.PayeeID})
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Exec(
			`INSERT INTO compliance_states (payee_type, payee_id, current_record_id, status, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			state.PayeeType,
			state.PayeeID,
			state.CurrentRecordID,
			state.Status,
			state.UpdatedAt,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE compliance_states
		 SET current_record_id = ?, status = ?, updated_at = ?
		 WHERE payee_type = ? AND payee_id = ?`,
		state.CurrentRecordID,
		state.Status,
		state.UpdatedAt,
		state.PayeeType,
		state.PayeeID,
	).Error
}

func (r *repo) ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.TaxRecord, error) {
	var records []*domain.TaxRecord
	stmt := db.WithContext(ctx).
		Model(&domain.TaxRecord{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", domain.StatusVerified, now).
		Order("expires_at asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
