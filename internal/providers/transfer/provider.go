package transfer

import (
	"context"
	"errors"

	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
)

// ErrTransferFailed marks a transient rail error. Callers retry with
// bounded backoff and hold the payout once retries are exhausted.
var ErrTransferFailed = errors.New("transfer_failed")

type Request struct {
	PayoutID snowflake.ID
	Payee    payee.Ref
	// Amount is the value to move, in minor currency units.
	Amount int64
	// Kind distinguishes the initial net transfer from a later reserve
	// release on the same payout.
	Kind Kind
}

type Kind string

const (
	KindNet     Kind = "net"
	KindReserve Kind = "reserve"
)

// Executor is the external funds-transfer rail. This service only decides
// whether and how much to move; the executor owns the actual movement.
type Executor interface {
	Execute(ctx context.Context, req Request) error
}

// NoOpExecutor accepts every transfer. It backs local development where no
// rail is attached.
type NoOpExecutor struct{}

func (NoOpExecutor) Execute(ctx context.Context, req Request) error { return nil }
