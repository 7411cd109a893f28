package gate

import (
	"context"
	"fmt"

	"github.com/bidworks/clearhouse/internal/clock"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	"github.com/bidworks/clearhouse/internal/config"
	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Decision is the outcome of a compliance-gate evaluation. Required means
// the payout must not proceed until verified tax documentation is on file.
type Decision struct {
	Required        bool   `json:"required"`
	Reason          string `json:"reason,omitempty"`
	CurrentEarnings int64  `json:"current_earnings"`
	Threshold       int64  `json:"threshold"`
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Settlement    *config.SettlementConfigHolder
	EarningsSvc   earningsdomain.Service
	ComplianceSvc compliancedomain.Service
}

// Gate decides whether a payout may proceed. Every evaluation re-reads
// earnings and compliance status; nothing is cached across the decision
// boundary.
type Gate struct {
	log           *zap.Logger
	clock         clock.Clock
	settlement    *config.SettlementConfigHolder
	earningsSvc   earningsdomain.Service
	complianceSvc compliancedomain.Service
}

func New(p Params) *Gate {
	return &Gate{
		log:           p.Log.Named("gate"),
		clock:         p.Clock,
		settlement:    p.Settlement,
		earningsSvc:   p.EarningsSvc,
		complianceSvc: p.ComplianceSvc,
	}
}

func (g *Gate) Evaluate(ctx context.Context, ref payee.Ref) (Decision, error) {
	if ref.IsZero() {
		return Decision{}, payee.ErrInvalidPayee
	}

	threshold := g.settlement.Get().ReportingThresholdCents
	year := g.clock.Now().Year()

	snapshot, err := g.earningsSvc.ComputeYTD(ctx, ref, year)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		CurrentEarnings: snapshot.Total,
		Threshold:       threshold,
	}

	// The threshold is inclusive: reaching it exactly requires
	// documentation.
	if snapshot.Total < threshold {
		return decision, nil
	}

	status, err := g.complianceSvc.CurrentStatus(ctx, ref)
	if err != nil {
		return Decision{}, err
	}
	if status == compliancedomain.StatusVerified {
		return decision, nil
	}

	decision.Required = true
	decision.Reason = fmt.Sprintf(
		"year-to-date earnings of %s reached the %s reporting threshold and no verified tax form is on file (current status: %s)",
		formatCents(snapshot.Total),
		formatCents(threshold),
		status,
	)
	return decision, nil
}

func formatCents(v int64) string {
	return fmt.Sprintf("$%d.%02d", v/100, v%100)
}
