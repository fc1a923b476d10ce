package cmd

import (
	"context"
	"fmt"
	"time"

	"hattery/api"
	"hattery/config"
	"hattery/database"
	"hattery/events"
	"hattery/repository"
	"hattery/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// closeSweepInterval is how often stored open->closed transitions are
// swept. Correctness never depends on this; the deadline predicate is
// authoritative on every operation.
const closeSweepInterval = time.Minute

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting hattery engine...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize event bus and unit of work factory
	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize the engine
	authority := service.NewAllowlistAuthority(cfg.ResolverIDs)
	campaignService := service.NewCampaignService(uowFactory, authority, cfg.DefaultFeeBps)

	// Optional NATS event forwarding
	if cfg.NATSURL != "" {
		forwarder, err := events.NewNATSForwarder(cfg.NATSURL, "hattery")
		if err != nil {
			return fmt.Errorf("failed to initialize NATS forwarder: %w", err)
		}
		forwarder.Attach(eventBus)
		defer forwarder.Close()
		log.Info("NATS event forwarding enabled")
	}

	// Optional Redis status cache
	var cache *api.StatusCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		cache = api.NewStatusCache(campaignService, rdb, 30*time.Second)
		cache.AttachInvalidation(eventBus)
		log.Info("Redis status cache enabled")
	}

	// Periodic sweep of expired open campaigns
	go func() {
		ticker := time.NewTicker(closeSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := campaignService.CloseExpiredCampaigns(ctx); err != nil {
					log.WithError(err).Error("Failed to close expired campaigns")
				}
			}
		}
	}()

	// Serve HTTP until shutdown
	server := api.NewServer(cfg.HTTPAddr, campaignService, cache)
	log.WithField("environment", cfg.Environment).Info("Engine is running")
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Shutdown complete")
	return nil
}
