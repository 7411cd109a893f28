package domain

import (
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type FormType string

const (
	FormTypeW9     FormType = "w9"
	FormTypeW8BEN  FormType = "w8ben"
	FormTypeW8BENE FormType = "w8bene"
)

func (f FormType) Valid() bool {
	return f == FormTypeW9 || f == FormTypeW8BEN || f == FormTypeW8BENE
}

// TaxClassification is the W-9 line 3 federal classification.
type TaxClassification string

const (
	ClassificationIndividual  TaxClassification = "individual"
	ClassificationCCorp       TaxClassification = "c_corporation"
	ClassificationSCorp       TaxClassification = "s_corporation"
	ClassificationPartnership TaxClassification = "partnership"
	ClassificationTrustEstate TaxClassification = "trust_estate"
	ClassificationLLC         TaxClassification = "llc"
	ClassificationOther       TaxClassification = "other"
)

func (c TaxClassification) Valid() bool {
	switch c {
	case ClassificationIndividual, ClassificationCCorp, ClassificationSCorp,
		ClassificationPartnership, ClassificationTrustEstate,
		ClassificationLLC, ClassificationOther:
		return true
	}
	return false
}

// RecordStatus is the per-record compliance state machine:
// pending -> {verified, invalid}; verified -> expired (time-triggered).
type RecordStatus string

const (
	StatusNotSubmitted RecordStatus = "not_submitted"
	StatusPending      RecordStatus = "pending"
	StatusVerified     RecordStatus = "verified"
	StatusInvalid      RecordStatus = "invalid"
	StatusExpired      RecordStatus = "expired"
)

// TaxRecord is one submitted tax form. Records are retained forever; only
// the current record (tracked in ComplianceState) gates payouts.
type TaxRecord struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	PayeeType         payee.Type        `gorm:"type:text;not null;index:idx_tax_records_payee,priority:1" json:"payee_type"`
	PayeeID           snowflake.ID      `gorm:"not null;index:idx_tax_records_payee,priority:2" json:"payee_id"`
	FormType          FormType          `gorm:"type:text;not null" json:"form_type"`
	LegalName         string            `gorm:"type:text;not null" json:"legal_name"`
	BusinessName      *string           `gorm:"type:text" json:"business_name,omitempty"`
	TaxClassification TaxClassification `gorm:"type:text" json:"tax_classification,omitempty"`
	TINType           tinvault.TINType  `gorm:"column:tin_type;type:text;not null" json:"tin_type"`
	EncryptedTIN      string            `gorm:"column:encrypted_tin;type:text;not null" json:"-"`
	TINLastFour       string            `gorm:"column:tin_last_four;type:text;not null" json:"tin_last_four"`
	Address           datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"address"`
	IsUSPerson        *bool             `gorm:"column:is_us_person" json:"is_us_person,omitempty"`
	IsExemptPayee     bool              `gorm:"not null;default:false" json:"is_exempt_payee"`
	ExemptPayeeCode   *string           `gorm:"type:text" json:"exempt_payee_code,omitempty"`
	SignatureName     string            `gorm:"type:text;not null" json:"signature_name"`
	SignatureDate     time.Time         `gorm:"not null" json:"signature_date"`
	Status            RecordStatus      `gorm:"type:text;not null;index" json:"status"`
	VerifiedAt        *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy        *string           `gorm:"type:text" json:"verified_by,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt         *time.Time        `gorm:"index" json:"expires_at,omitempty"`
}

func (TaxRecord) TableName() string { return "tax_records" }

func (r *TaxRecord) Payee() payee.Ref {
	return payee.Ref{Type: r.PayeeType, ID: r.PayeeID}
}

// ComplianceState is the explicitly maintained current-record pointer, one
// row per payee, updated in the same transaction as every record mutation.
// Payout decisions read this row instead of sorting tax_records at read
// time.
type ComplianceState struct {
	PayeeType       payee.Type   `gorm:"primaryKey;type:text" json:"payee_type"`
	PayeeID         snowflake.ID `gorm:"primaryKey" json:"payee_id"`
	CurrentRecordID snowflake.ID `gorm:"not null" json:"current_record_id"`
	Status          RecordStatus `gorm:"type:text;not null" json:"status"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ComplianceState) TableName() string { return "compliance_states" }
