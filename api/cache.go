package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hattery/events"
	"hattery/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// StatusCache is a Redis read-through cache for campaign status snapshots.
// Render-heavy surfaces (discover lists, share cards) poll status far more
// often than it changes; the cache absorbs that load. Writes never touch it
// directly: bus events invalidate keys after commit, and every entry carries
// a TTL as a backstop. Redis being down degrades to direct engine reads.
type StatusCache struct {
	campaigns service.CampaignService
	rdb       *redis.Client
	ttl       time.Duration
}

// NewStatusCache creates a status cache backed by the given Redis client
func NewStatusCache(campaigns service.CampaignService, rdb *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{
		campaigns: campaigns,
		rdb:       rdb,
		ttl:       ttl,
	}
}

// AttachInvalidation subscribes cache invalidation to engine events
func (c *StatusCache) AttachInvalidation(bus *events.Bus) {
	bus.Subscribe(events.EventTypeWagerPlaced, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.WagerPlacedEvent); ok {
			c.invalidate(ctx, e.CampaignID)
		}
	})
	bus.Subscribe(events.EventTypeCampaignStateChange, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.CampaignStateChangeEvent); ok {
			c.invalidate(ctx, e.CampaignID)
		}
	})
	bus.Subscribe(events.EventTypeCampaignResolved, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.CampaignResolvedEvent); ok {
			c.invalidate(ctx, e.CampaignID)
		}
	})
}

// Status returns a campaign status snapshot, from cache when fresh
func (c *StatusCache) Status(ctx context.Context, campaignID uuid.UUID) (*service.CampaignStatus, error) {
	key := statusKey(campaignID)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var status service.CampaignStatus
		if err := json.Unmarshal(cached, &status); err == nil {
			return &status, nil
		}
		// Unreadable entry; drop it and fall through to the engine
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		log.WithError(err).Warn("Redis read failed, falling back to engine")
	}

	status, err := c.campaigns.GetCampaignStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(status); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.WithError(err).Warn("Redis write failed")
		}
	}

	return status, nil
}

func (c *StatusCache) invalidate(ctx context.Context, campaignID uuid.UUID) {
	if err := c.rdb.Del(ctx, statusKey(campaignID)).Err(); err != nil {
		log.WithError(err).Warn("Redis invalidation failed")
	}
}

func statusKey(campaignID uuid.UUID) string {
	return fmt.Sprintf("campaign:status:%s", campaignID)
}
