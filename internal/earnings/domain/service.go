package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *SettlementEntry) error
	FindByEventID(ctx context.Context, db *gorm.DB, eventID snowflake.ID) (SettlementEntry, error)
	// SumFinalized aggregates finalized gross amounts for the payee within
	// [from, to).
	SumFinalized(ctx context.Context, db *gorm.DB, ref payee.Ref, from, to time.Time) (int64, error)
}

// Service derives year-to-date settled earnings. It always re-queries the
// store; callers making a binding payout decision must not cache results.
type Service interface {
	ComputeYTD(ctx context.Context, ref payee.Ref, year int) (Snapshot, error)
	RecordEntry(ctx context.Context, entry SettlementEntry) (SettlementEntry, error)
}

var (
	ErrInvalidYear   = errors.New("invalid_year")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidEvent  = errors.New("invalid_event")
)
