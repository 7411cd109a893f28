package repository

import (
	"context"
	"time"

	"github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.SettlementEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO settlement_entries (
			id, payee_type, payee_id, event_id, gross_amount, currency,
			finalized, finalized_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PayeeType,
		entry.PayeeID,
		entry.EventID,
		entry.GrossAmount,
		entry.Currency,
		entry.Finalized,
		entry.FinalizedAt,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindByEventID(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (domain.SettlementEntry, error) {
	var entry domain.SettlementEntry
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM settlement_entries WHERE event_id = ? LIMIT 1`,
		eventID,
	).Scan(&entry).Error
	if err != nil {
		return domain.SettlementEntry{}, err
	}
	if entry.ID == 0 {
		return domain.SettlementEntry{}, gorm.ErrRecordNotFound
	}
	return entry, nil
}

func (r *repo) SumFinalized(ctx context.Context, db *gorm.DB, ref payee.Ref, from, to time.Time) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(gross_amount) FROM settlement_entries
		 WHERE payee_type = ? AND payee_id = ?
		   AND finalized = ?
		   AND finalized_at >= ? AND finalized_at < ?`,
		ref.Type,
		ref.ID,
		true,
		from,
		to,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
