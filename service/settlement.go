package service

import (
	"math"
	"math/bits"

	"hattery/models"
)

// FeeBpsDenominator is the basis-point scale for fee rates (1000 = 10%)
const FeeBpsDenominator = 10000

// SettlementCalculator contains the pure parimutuel payout arithmetic. All
// amounts are integer minor-units; rounding always floors toward zero. The
// calculator never mutates state and returns identical results for identical
// inputs.
type SettlementCalculator struct{}

// NewSettlementCalculator creates a new settlement calculator
func NewSettlementCalculator() *SettlementCalculator {
	return &SettlementCalculator{}
}

// mulDiv computes floor(a * b / div) with a 128-bit intermediate so pools
// near the int64 ceiling cannot silently wrap. Inputs must be non-negative
// and div positive; ok is false only when the quotient itself exceeds int64.
func mulDiv(a, b, div int64) (int64, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(div) {
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, uint64(div))
	if quo > math.MaxInt64 {
		return 0, false
	}
	return int64(quo), true
}

// NetLosingPool returns the losing pool net of the platform fee. The fee is
// taken once over the whole losing pool, not per winner, so rounding drift
// cannot accumulate across positions.
func (s *SettlementCalculator) NetLosingPool(losingTotal, feeBps int64) int64 {
	// The quotient is at most losingTotal, so this cannot overflow
	net, _ := mulDiv(losingTotal, FeeBpsDenominator-feeBps, FeeBpsDenominator)
	return net
}

// FeeTake returns the platform's cut of the losing pool
func (s *SettlementCalculator) FeeTake(losingTotal, feeBps int64) int64 {
	return losingTotal - s.NetLosingPool(losingTotal, feeBps)
}

// Payout computes a position's net gain from a resolved campaign.
//
// With W the winning pool, L the losing pool and N = floor(L * (1-fee)),
// a winner staking a receives floor(a * N / W). Losing positions get 0.
// The sum over all winners never exceeds N, and the rounding remainder
// retained by the platform is bounded below W minor-units.
func (s *SettlementCalculator) Payout(position *models.Position, campaign *models.Campaign) (int64, error) {
	if !campaign.IsResolved() || campaign.WinningSide == nil {
		return 0, models.ErrNotResolved
	}
	if position.Side != *campaign.WinningSide {
		return 0, nil
	}

	winningTotal := campaign.PoolTotal(*campaign.WinningSide)
	losingTotal := campaign.PoolTotal(campaign.WinningSide.Opposite())

	// A won position implies it contributed to the winning pool. An empty
	// winning pool here is corrupted accounting, not a zero payout.
	if winningTotal <= 0 {
		return 0, models.NewInvariantViolation("winning-pool-positive",
			"campaign %s resolved for %s with winning pool %d but position %s won",
			campaign.ID, *campaign.WinningSide, winningTotal, position.ID)
	}
	if position.Amount > winningTotal {
		return 0, models.NewInvariantViolation("stake-within-pool",
			"position %s staked %d exceeding winning pool %d of campaign %s",
			position.ID, position.Amount, winningTotal, campaign.ID)
	}

	net := s.NetLosingPool(losingTotal, campaign.FeeBps)

	// With amount <= winningTotal the quotient is at most net, so the only
	// way mulDiv can fail is corrupted inputs.
	payout, ok := mulDiv(position.Amount, net, winningTotal)
	if !ok {
		return 0, models.NewInvariantViolation("payout-overflow",
			"payout for position %s of campaign %s exceeds the representable range",
			position.ID, campaign.ID)
	}
	return payout, nil
}

// Refund returns the full-stake, fee-free disbursement for a position in a
// cancelled campaign
func (s *SettlementCalculator) Refund(position *models.Position) int64 {
	return position.Amount
}

// ImpliedMultiplier calculates the display multiplier for a side from the
// current pool shares. Presentation only; settlement never touches floats.
func (s *SettlementCalculator) ImpliedMultiplier(campaign *models.Campaign, side models.BetSide) float64 {
	sideTotal := campaign.PoolTotal(side)
	if sideTotal == 0 {
		return 0
	}
	return float64(campaign.TotalPot()) / float64(sideTotal)
}
