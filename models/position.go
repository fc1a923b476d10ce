package models

import (
	"time"

	"github.com/google/uuid"
)

// PositionStatus represents the outcome of a position, derived from the
// campaign's state and winning side
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusWon    PositionStatus = "won"
	PositionStatusLost   PositionStatus = "lost"
)

// Position represents a single wager on one side of a campaign. Claimed and
// PayoutAmount together form the claim record: PayoutAmount is fixed at the
// moment of disbursement and recomputation must yield the same value.
type Position struct {
	ID           uuid.UUID  `db:"id"`
	CampaignID   uuid.UUID  `db:"campaign_id"`
	OwnerID      string     `db:"owner_id"`
	Side         BetSide    `db:"side"`
	Amount       int64      `db:"amount"`
	Claimed      bool       `db:"claimed"`
	PayoutAmount *int64     `db:"payout_amount"`
	CreatedAt    time.Time  `db:"created_at"`
	ClaimedAt    *time.Time `db:"claimed_at"`
}

// StatusIn derives the position's status from its campaign. A position never
// carries its own status column; it is always a function of
// (position.side, campaign.winningSide).
func (p *Position) StatusIn(c *Campaign) PositionStatus {
	if !c.IsResolved() || c.WinningSide == nil {
		return PositionStatusActive
	}
	if p.Side == *c.WinningSide {
		return PositionStatusWon
	}
	return PositionStatusLost
}

// IsWinnerIn checks whether the position sits on the resolved winning side
func (p *Position) IsWinnerIn(c *Campaign) bool {
	return p.StatusIn(c) == PositionStatusWon
}

// MarkClaimed records the disbursement of a payout (or refund) exactly once
func (p *Position) MarkClaimed(payout int64, now time.Time) {
	p.Claimed = true
	p.PayoutAmount = &payout
	claimedAt := now
	p.ClaimedAt = &claimedAt
}
