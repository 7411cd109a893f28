package service

import (
	"math"

	"github.com/bidworks/clearhouse/internal/payout/domain"
)

// computeBreakdown splits gross into fee, reserve, and net. Fee and
// reserve are each rounded half-up from gross independently; net is the
// remainder, so the three parts always sum back to gross.
func computeBreakdown(gross int64, feeRate, reserveRate float64) (domain.Breakdown, error) {
	if gross <= 0 {
		return domain.Breakdown{}, domain.ErrInvalidAmount
	}
	if !validRate(feeRate) || !validRate(reserveRate) || feeRate+reserveRate >= 1 {
		return domain.Breakdown{}, domain.ErrInvalidRates
	}

	fee := roundHalfUp(float64(gross) * feeRate)
	reserve := roundHalfUp(float64(gross) * reserveRate)
	net := gross - fee - reserve
	if net < 0 {
		return domain.Breakdown{}, domain.ErrInvalidRates
	}

	return domain.Breakdown{
		FeeAmount:     fee,
		ReserveAmount: reserve,
		NetAmount:     net,
	}, nil
}

func validRate(rate float64) bool {
	return rate >= 0 && rate < 1 && !math.IsNaN(rate)
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
