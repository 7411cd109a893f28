package domain

import (
	"context"
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/bwmarrin/snowflake"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type SubmitRequest struct {
	Payee             payee.Ref
	FormType          FormType
	LegalName         string
	BusinessName      string
	TaxClassification TaxClassification
	TINType           tinvault.TINType
	TIN               string
	Address           Address
	IsUSPerson        *bool
	IsExemptPayee     bool
	ExemptPayeeCode   string
	SignatureName     string
	SignatureDate     time.Time
	IPAddress         string
}

type Decision string

const (
	DecisionVerified Decision = "verified"
	DecisionInvalid  Decision = "invalid"
)

// StatusResponse is the public compliance surface; it never carries
// ciphertext or plaintext.
type StatusResponse struct {
	Status         RecordStatus     `json:"status"`
	TINLastFour    string           `json:"tin_last_four,omitempty"`
	TINType        tinvault.TINType `json:"tin_type,omitempty"`
	MaskedTIN      string           `json:"masked_tin,omitempty"`
	RequiresUpdate bool             `json:"requires_update"`
}

// DecryptedTIN is the result of the sole legitimate plaintext path.
type DecryptedTIN struct {
	TIN           string           `json:"tin"`
	TINType       tinvault.TINType `json:"tin_type"`
	MaskedDisplay string           `json:"masked_display"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (TaxRecord, error)
	Verify(ctx context.Context, recordID snowflake.ID, reviewerRef string, decision Decision) error
	CurrentStatus(ctx context.Context, ref payee.Ref) (RecordStatus, error)
	Status(ctx context.Context, ref payee.Ref) (StatusResponse, error)
	DecryptTINFor1099(ctx context.Context, recordID snowflake.ID, reviewerRef, ipAddress string) (DecryptedTIN, error)
	ExpireRecords(ctx context.Context, now time.Time, limit int) (int, error)
}
