package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository mutations are status-guarded updates: the WHERE clause names
// the expected current status and callers treat zero affected rows as a
// lost race.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *PayoutRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PayoutRecord, error)
	UpdateRetryCount(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int) error
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, completedAt time.Time, releaseDue time.Time, retryCount int) (int64, error)
	MarkHeld(ctx context.Context, db *gorm.DB, id snowflake.ID, fromStatus PayoutStatus, reason string, retryCount int) (int64, error)
	MarkReserveReleased(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ResolveHeld(ctx context.Context, db *gorm.DB, id snowflake.ID, status PayoutStatus, completedAt, releaseDue *time.Time) (int64, error)
	SetChargebackFlag(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListReserveDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*PayoutRecord, error)
}
