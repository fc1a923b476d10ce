package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// HTTP configuration
	HTTPAddr string

	// Database configuration
	DatabaseURL string

	// Settlement configuration
	DefaultFeeBps int64 // platform fee in basis points (1000 = 10%)

	// Resolver IDs allowed to resolve and cancel campaigns
	ResolverIDs []string

	// Optional integrations
	NATSURL  string
	RedisURL string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		HTTPAddr:    os.Getenv("HTTP_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Environment: os.Getenv("ENVIRONMENT"),

		// Settlement defaults
		DefaultFeeBps: 1000,
	}

	if config.HTTPAddr == "" {
		config.HTTPAddr = ":8080"
	}

	if fee := os.Getenv("FEE_BPS"); fee != "" {
		parsedFee, err := strconv.ParseInt(fee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FEE_BPS: %w", err)
		}
		if parsedFee < 0 || parsedFee >= 10000 {
			return nil, fmt.Errorf("FEE_BPS must be in [0, 10000), got %d", parsedFee)
		}
		config.DefaultFeeBps = parsedFee
	}

	// Parse resolver IDs
	if resolverIDs := os.Getenv("RESOLVER_IDS"); resolverIDs != "" {
		for _, id := range strings.Split(resolverIDs, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				config.ResolverIDs = append(config.ResolverIDs, id)
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
