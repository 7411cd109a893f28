package domain

import (
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
)

// SettlementEntry is one finalized marketplace transaction attributable to
// a payee. Only finalized entries count toward year-to-date earnings.
type SettlementEntry struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PayeeType   payee.Type   `gorm:"type:text;not null;index:idx_settlement_entries_payee,priority:1" json:"payee_type"`
	PayeeID     snowflake.ID `gorm:"not null;index:idx_settlement_entries_payee,priority:2" json:"payee_id"`
	EventID     snowflake.ID `gorm:"not null;uniqueIndex:idx_settlement_entries_event_id" json:"event_id"`
	GrossAmount int64        `gorm:"not null" json:"gross_amount"`
	Currency    string       `gorm:"type:text;not null;default:'USD'" json:"currency"`
	Finalized   bool         `gorm:"not null;default:false;index" json:"finalized"`
	FinalizedAt *time.Time   `json:"finalized_at,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SettlementEntry) TableName() string { return "settlement_entries" }

// Snapshot is the derived year-to-date figure. It is computed on demand
// and never persisted.
type Snapshot struct {
	Payee payee.Ref `json:"-"`
	Year  int       `json:"year"`
	Total int64     `json:"total"`
}
