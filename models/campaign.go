package models

import (
	"time"

	"github.com/google/uuid"
)

// CampaignState represents the lifecycle state of a campaign
type CampaignState string

const (
	CampaignStateOpen      CampaignState = "open"
	CampaignStateClosed    CampaignState = "closed"
	CampaignStateResolved  CampaignState = "resolved"
	CampaignStateCancelled CampaignState = "cancelled"
)

// BetSide represents one of the two opposing sides of a campaign
type BetSide string

const (
	SideSupporter BetSide = "supporter"
	SideHatter    BetSide = "hatter"
)

// IsValid checks whether the side is one of the two known sides
func (s BetSide) IsValid() bool {
	return s == SideSupporter || s == SideHatter
}

// Opposite returns the opposing side
func (s BetSide) Opposite() BetSide {
	if s == SideSupporter {
		return SideHatter
	}
	return SideSupporter
}

// Campaign represents a time-bounded two-sided betting campaign.
// SupporterPool and HatterPool hold the total staked per side in integer
// minor-units and must equal the sum of the side's positions at all times.
type Campaign struct {
	ID            uuid.UUID     `db:"id"`
	CreatorID     string        `db:"creator_id"`
	TokenName     string        `db:"token_name"`
	ImageURL      string        `db:"image_url"`
	AssetLink     string        `db:"asset_link"`
	Network       string        `db:"network"`
	State         CampaignState `db:"state"`
	FeeBps        int64         `db:"fee_bps"`
	SupporterPool int64         `db:"supporter_pool"`
	HatterPool    int64         `db:"hatter_pool"`
	WinningSide   *BetSide      `db:"winning_side"`
	ClosesAt      time.Time     `db:"closes_at"`
	CreatedAt     time.Time     `db:"created_at"`
	ResolvedAt    *time.Time    `db:"resolved_at"`
}

// IsDeadlinePassed checks whether the closing deadline has been reached.
// The deadline is authoritative over the stored state flag: a campaign whose
// row still says open is closed for betting the instant the deadline passes.
func (c *Campaign) IsDeadlinePassed(now time.Time) bool {
	return !now.Before(c.ClosesAt)
}

// EffectiveState returns the lifecycle state as observed at the given
// instant, deriving the open -> closed transition from the deadline rather
// than relying on a sweep having updated the row.
func (c *Campaign) EffectiveState(now time.Time) CampaignState {
	if c.State == CampaignStateOpen && c.IsDeadlinePassed(now) {
		return CampaignStateClosed
	}
	return c.State
}

// AcceptsWagersAt checks whether the campaign can accept new positions
func (c *Campaign) AcceptsWagersAt(now time.Time) bool {
	return c.EffectiveState(now) == CampaignStateOpen
}

// IsResolved checks whether the campaign has a winning side fixed
func (c *Campaign) IsResolved() bool {
	return c.State == CampaignStateResolved
}

// IsCancelled checks whether the campaign was administratively cancelled
func (c *Campaign) IsCancelled() bool {
	return c.State == CampaignStateCancelled
}

// IsTerminal checks whether no further state transitions are possible
func (c *Campaign) IsTerminal() bool {
	return c.IsResolved() || c.IsCancelled()
}

// PoolTotal returns the total staked on one side in minor-units
func (c *Campaign) PoolTotal(side BetSide) int64 {
	if side == SideSupporter {
		return c.SupporterPool
	}
	return c.HatterPool
}

// AddStake increments a side's pool total by the given amount
func (c *Campaign) AddStake(side BetSide, amount int64) {
	if side == SideSupporter {
		c.SupporterPool += amount
	} else {
		c.HatterPool += amount
	}
}

// TotalPot returns the combined stake across both sides
func (c *Campaign) TotalPot() int64 {
	return c.SupporterPool + c.HatterPool
}

// Close transitions an open campaign to closed
func (c *Campaign) Close() {
	if c.State == CampaignStateOpen {
		c.State = CampaignStateClosed
	}
}

// Resolve fixes the winning side. Only legal from the closed state; the
// winning side is immutable once set.
func (c *Campaign) Resolve(side BetSide, now time.Time) {
	if c.EffectiveState(now) == CampaignStateClosed {
		c.State = CampaignStateResolved
		c.WinningSide = &side
		resolvedAt := now
		c.ResolvedAt = &resolvedAt
	}
}

// Cancel cancels the campaign, making every position refundable
func (c *Campaign) Cancel() {
	if c.State == CampaignStateOpen || c.State == CampaignStateClosed {
		c.State = CampaignStateCancelled
	}
}
