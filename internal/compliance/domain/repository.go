package domain

import (
	"context"
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRecord(ctx context.Context, db *gorm.DB, record *TaxRecord) error
	FindRecordByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxRecord, error)
	// MarkReviewed flips a pending record to verified or invalid. It
	// returns the number of rows updated so callers can detect a lost race
	// without a second read.
	MarkReviewed(ctx context.Context, db *gorm.DB, id snowflake.ID, status RecordStatus, verifiedAt time.Time, verifiedBy string, expiresAt *time.Time) (int64, error)
	MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	FindState(ctx context.Context, db *gorm.DB, ref payee.Ref) (*ComplianceState, error)
	UpsertState(ctx context.Context, db *gorm.DB, state *ComplianceState) error
	ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*TaxRecord, error)
}
