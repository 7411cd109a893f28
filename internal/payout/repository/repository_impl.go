package repository

import (
	"context"
	"time"

	"github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.PayoutRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payout_records (
			id, payee_type, payee_id, event_id, gross_amount,
			fee_rate, fee_amount, reserve_rate, reserve_amount, net_amount,
			status, initiated_at, completed_at, reserve_release_due,
			hold_reason, retry_count, chargeback_flag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PayeeType,
		record.PayeeID,
		record.EventID,
		record.GrossAmount,
		record.FeeRate,
		record.FeeAmount,
		record.ReserveRate,
		record.ReserveAmount,
		record.NetAmount,
		record.Status,
		record.InitiatedAt,
		record.CompletedAt,
		record.ReserveReleaseDue,
		record.HoldReason,
		record.RetryCount,
		record.ChargebackFlag,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PayoutRecord, error) {
	var record domain.PayoutRecord
	err := db.WithContext(ctx).
		Model(&domain.PayoutRecord{}).
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

func (r *repo) UpdateRetryCount(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payout_records SET retry_count = ? WHERE id = ?`,
		retryCount,
		id,
	).Error
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, completedAt time.Time, releaseDue time.Time, retryCount int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payout_records
		 SET status = ?, completed_at = ?, reserve_release_due = ?, retry_count = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		completedAt,
		releaseDue,
		retryCount,
		id,
		domain.StatusProcessing,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkHeld(ctx context.Context, db *gorm.DB, id snowflake.ID, fromStatus domain.PayoutStatus, reason string, retryCount int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payout_records
		 SET status = ?, hold_reason = ?, retry_count = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusHeld,
		reason,
		retryCount,
		id,
		fromStatus,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkReserveReleased(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	// A flagged record is excluded here too, so a chargeback that lands
	// between the service check and this update still blocks release.
	result := db.WithContext(ctx).Exec(
		`UPDATE payout_records
		 SET status = ?
		 WHERE id = ? AND status = ? AND chargeback_flag = ?`,
		domain.StatusReserveReleased,
		id,
		domain.StatusCompleted,
		false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ResolveHeld(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PayoutStatus, completedAt, releaseDue *time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payout_records
		 SET status = ?, completed_at = ?, reserve_release_due = ?, hold_reason = NULL
		 WHERE id = ? AND status = ?`,
		status,
		completedAt,
		releaseDue,
		id,
		domain.StatusHeld,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetChargebackFlag(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payout_records
		 SET chargeback_flag = ?
		 WHERE id = ? AND status IN (?, ?)`,
		true,
		id,
		domain.StatusCompleted,
		domain.StatusHeld,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListReserveDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.PayoutRecord, error) {
	var records []*domain.PayoutRecord
	stmt := db.WithContext(ctx).
		Model(&domain.PayoutRecord{}).
		Where("status = ? AND chargeback_flag = ? AND reserve_release_due IS NOT NULL AND reserve_release_due <= ?",
			domain.StatusCompleted, false, now).
		Order("reserve_release_due asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
