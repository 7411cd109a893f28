package domain

import (
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
)

// PayoutStatus is the staged payout lifecycle:
// processing -> completed -> reserve_released, or processing -> held, and
// held -> {completed, cancelled} only via explicit reviewer action.
type PayoutStatus string

const (
	StatusProcessing      PayoutStatus = "processing"
	StatusCompleted       PayoutStatus = "completed"
	StatusHeld            PayoutStatus = "held"
	StatusReserveReleased PayoutStatus = "reserve_released"
	StatusCancelled       PayoutStatus = "cancelled"
)

// PayoutRecord is one staged settlement. Rates are captured at creation
// and never changed by later configuration updates.
type PayoutRecord struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	PayeeType         payee.Type   `gorm:"type:text;not null;index:idx_payout_records_payee,priority:1" json:"payee_type"`
	PayeeID           snowflake.ID `gorm:"not null;index:idx_payout_records_payee,priority:2" json:"payee_id"`
	EventID           snowflake.ID `gorm:"not null;index" json:"event_id"`
	GrossAmount       int64        `gorm:"not null" json:"gross_amount"`
	FeeRate           float64      `gorm:"not null" json:"fee_rate"`
	FeeAmount         int64        `gorm:"not null" json:"fee_amount"`
	ReserveRate       float64      `gorm:"not null" json:"reserve_rate"`
	ReserveAmount     int64        `gorm:"not null" json:"reserve_amount"`
	NetAmount         int64        `gorm:"not null" json:"net_amount"`
	Status            PayoutStatus `gorm:"type:text;not null;index" json:"status"`
	InitiatedAt       time.Time    `gorm:"not null" json:"initiated_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
	ReserveReleaseDue *time.Time   `gorm:"index" json:"reserve_release_due,omitempty"`
	HoldReason        *string      `gorm:"type:text" json:"hold_reason,omitempty"`
	RetryCount        int          `gorm:"not null;default:0" json:"retry_count"`
	ChargebackFlag    bool         `gorm:"not null;default:false" json:"chargeback_flag"`
}

func (PayoutRecord) TableName() string { return "payout_records" }

func (r *PayoutRecord) Payee() payee.Ref {
	return payee.Ref{Type: r.PayeeType, ID: r.PayeeID}
}

// Breakdown is the fee/reserve/net split of a gross amount. Fee and
// reserve are each rounded half-up from gross independently, never
// compounded.
type Breakdown struct {
	FeeAmount     int64 `json:"fee_amount"`
	ReserveAmount int64 `json:"reserve_amount"`
	NetAmount     int64 `json:"net_amount"`
}
