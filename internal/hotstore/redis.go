// Package hotstore is the Tier 1 ephemeral store (Redis): session state
// projections, submission locks, and cached pools/questions, all JSON-coded
// with TTLs. It never owns canonical data - losing it degrades performance,
// never correctness.
package hotstore

import (
	"context"
	"log"

	"adaptivetest/internal/config"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

func init() {
	cfg := config.ServiceConfig.Redis
	Client = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := Client.Conn().Ping(context.Background()).Err(); err != nil {
		log.Printf("[hotstore] error connecting to redis: %s", err)
	}
}
