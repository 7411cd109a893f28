package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidRates           = errors.New("invalid_rates")
	ErrNotFound               = errors.New("not_found")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrComplianceBlocked      = errors.New("compliance_blocked")
	ErrReserveNotDue          = errors.New("reserve_not_due")
	ErrChargebackFlagged      = errors.New("chargeback_flagged")
	ErrMissingReviewer        = errors.New("missing_reviewer")
	ErrInvalidResolution      = errors.New("invalid_resolution")
)

// ComplianceBlockedError carries the gate's reasoning back to the caller.
// It unwraps to ErrComplianceBlocked.
type ComplianceBlockedError struct {
	Reason          string `json:"reason"`
	CurrentEarnings int64  `json:"current_earnings"`
	Threshold       int64  `json:"threshold"`
}

func (e *ComplianceBlockedError) Error() string {
	return fmt.Sprintf("compliance_blocked: %s", e.Reason)
}

func (e *ComplianceBlockedError) Unwrap() error { return ErrComplianceBlocked }

type HoldResolution string

const (
	ResolutionCompleted HoldResolution = "completed"
	ResolutionCancelled HoldResolution = "cancelled"
)

type Service interface {
	// Compute splits a gross amount with explicit rates, without touching
	// any record.
	Compute(gross int64, feeRate, reserveRate float64) (Breakdown, error)
	Initiate(ctx context.Context, ref payee.Ref, eventID snowflake.ID, gross int64) (PayoutRecord, error)
	GetByID(ctx context.Context, id snowflake.ID) (PayoutRecord, error)
	ResolveHold(ctx context.Context, id snowflake.ID, reviewerRef string, resolution HoldResolution) (PayoutRecord, error)
	FlagChargeback(ctx context.Context, id snowflake.ID) error
	ReleaseReserve(ctx context.Context, id snowflake.ID) error
	ReleaseDueReserves(ctx context.Context, now time.Time, limit int) (int, error)
}
