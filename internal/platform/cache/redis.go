// Package cache owns Redis client construction.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient dials Redis and probes it with a bounded ping. The client is
// returned even when the ping fails: the decision cache and job queue both
// degrade gracefully, so an unreachable Redis at boot should not stop the
// service. The caller decides whether the error is fatal.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("cache: ping: %w", err)
	}
	return client, nil
}
