package notify

import (
	"context"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
)

// Event names mirror the state changes the rest of the platform reacts to.
const (
	EventComplianceVerified = "compliance.verified"
	EventComplianceRejected = "compliance.rejected"
	EventComplianceExpired  = "compliance.expired"
	EventPayoutProcessing   = "payout.processing"
	EventPayoutCompleted    = "payout.completed"
	EventPayoutHeld         = "payout.held"
	EventPayoutCancelled    = "payout.cancelled"
	EventReserveReleased    = "payout.reserve_released"
)

type Event struct {
	Type     string
	Payee    payee.Ref
	TargetID snowflake.ID
	Metadata map[string]any
}

// Dispatcher fans state changes out to the notification pipeline. It is
// informational only: dispatch never influences settlement decisions and
// its errors are not propagated.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

type NoOpDispatcher struct{}

func (NoOpDispatcher) Dispatch(ctx context.Context, event Event) {}
