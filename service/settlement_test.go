package service

import (
	"testing"

	"hattery/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementCalculator_Payout_ProportionalSplit(t *testing.T) {
	// Supporter pool 12500, hatter pool 7800, fee 10%, supporters win.
	// Net losing pool N = floor(7800 * 0.9) = 7020.
	// A 100 stake receives floor(100 * 7020 / 12500) = 56.
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	payout, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	assert.Equal(t, int64(56), payout)
}

func TestSettlementCalculator_Payout_LosingPositionGetsZero(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideHatter, 500)

	payout, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	assert.Equal(t, int64(0), payout)
}

func TestSettlementCalculator_Payout_UnresolvedCampaign(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := openCampaignFixture()
	campaign.SupporterPool = 1000
	campaign.HatterPool = 1000
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	_, err := calc.Payout(position, campaign)
	assert.ErrorIs(t, err, models.ErrNotResolved)
}

func TestSettlementCalculator_Payout_EmptyWinningPoolIsFault(t *testing.T) {
	// A won position on an empty winning pool is corrupted accounting. The
	// calculator must fault, never return a number.
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter, 0, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 100)

	_, err := calc.Payout(position, campaign)
	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
}

func TestSettlementCalculator_Payout_StakeExceedingPoolIsFault(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter, 500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 600)

	_, err := calc.Payout(position, campaign)
	require.Error(t, err)
	assert.True(t, models.IsInvariantViolation(err))
}

func TestSettlementCalculator_Payout_EmptyLosingPool(t *testing.T) {
	// No opposing stake to redistribute: every winner gets 0. Valid outcome,
	// not an error.
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideHatter, 0, 5000)
	position := positionFixture(campaign, TestBettorID, models.SideHatter, 5000)

	payout, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	assert.Equal(t, int64(0), payout)
}

func TestSettlementCalculator_Payout_IdempotentRecomputation(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter, 12500, 7800)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 3333)

	first, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	second, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSettlementCalculator_RoundingLeakageBound(t *testing.T) {
	// Awkward stakes chosen so floor division loses units. The sum of all
	// winner payouts never exceeds the net losing pool, and the retained
	// remainder stays below the winning pool total.
	calc := NewSettlementCalculator()

	stakes := []int64{1, 7, 13, 101, 997, 4999, 6382}
	var winningTotal int64
	for _, s := range stakes {
		winningTotal += s
	}
	campaign := resolvedCampaignFixture(models.SideSupporter, winningTotal, 9973)

	net := calc.NetLosingPool(9973, campaign.FeeBps)
	var distributed int64
	for _, stake := range stakes {
		position := positionFixture(campaign, TestBettorID, models.SideSupporter, stake)
		payout, err := calc.Payout(position, campaign)
		require.NoError(t, err)
		distributed += payout
	}

	assert.LessOrEqual(t, distributed, net)
	assert.Less(t, net-distributed, winningTotal, "rounding loss must stay below one unit per winner")
}

func TestSettlementCalculator_Payout_HugePools(t *testing.T) {
	// Pools near the int64 ceiling. The intermediate products here exceed
	// 64 bits by far, so a naive multiply would wrap; the exact quotients
	// still fit and must come out unchanged.
	calc := NewSettlementCalculator()
	campaign := resolvedCampaignFixture(models.SideSupporter,
		9_000_000_000_000_000_000, 9_000_000_000_000_000_000)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter,
		3_000_000_000_000_000_000)

	assert.Equal(t, int64(8_100_000_000_000_000_000),
		calc.NetLosingPool(9_000_000_000_000_000_000, campaign.FeeBps))

	payout, err := calc.Payout(position, campaign)
	require.NoError(t, err)
	assert.Equal(t, int64(2_700_000_000_000_000_000), payout)
}

func TestSettlementCalculator_NetLosingPoolAndFeeTake(t *testing.T) {
	calc := NewSettlementCalculator()

	assert.Equal(t, int64(7020), calc.NetLosingPool(7800, 1000))
	assert.Equal(t, int64(780), calc.FeeTake(7800, 1000))

	// Zero fee passes the losing pool through untouched
	assert.Equal(t, int64(7800), calc.NetLosingPool(7800, 0))
	assert.Equal(t, int64(0), calc.FeeTake(7800, 0))

	// The fee floor rounds in the winners' favor
	assert.Equal(t, int64(9), calc.NetLosingPool(11, 1000))
	assert.Equal(t, int64(2), calc.FeeTake(11, 1000))
}

func TestSettlementCalculator_Refund(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := cancelledCampaignFixture(150, 0)
	position := positionFixture(campaign, TestBettorID, models.SideSupporter, 150)

	// Full stake back, no fee
	assert.Equal(t, int64(150), calc.Refund(position))
}

func TestSettlementCalculator_ImpliedMultiplier(t *testing.T) {
	calc := NewSettlementCalculator()
	campaign := openCampaignFixture()
	campaign.SupporterPool = 2500
	campaign.HatterPool = 7500

	assert.InDelta(t, 4.0, calc.ImpliedMultiplier(campaign, models.SideSupporter), 0.0001)
	assert.InDelta(t, 4.0/3.0, calc.ImpliedMultiplier(campaign, models.SideHatter), 0.0001)

	// An empty side has no implied odds yet
	campaign.HatterPool = 0
	assert.Equal(t, 0.0, calc.ImpliedMultiplier(campaign, models.SideHatter))
}
