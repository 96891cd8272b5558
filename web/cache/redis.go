// Package cache provides the Redis connection used for login sessions and
// rate limiting. It talks to an external server or, when no address is
// configured, to an embedded miniredis instance.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sheetplot/sheetplot/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Redis holds a client and, in embedded mode, the server behind it.
type Redis struct {
	client   *redis.Client
	embedded *miniredis.Miniredis
}

// NewRedis connects to addr. An empty addr starts an embedded server.
func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		logger.Info("Embedded Redis started on", mr.Addr())
		return &Redis{
			client:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
			embedded: mr,
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logger.Info("Connected to external Redis at", addr)
	return &Redis{client: client}, nil
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) IsEmbedded() bool {
	return r.embedded != nil
}

// Close closes the connection and stops the embedded server if running.
func (r *Redis) Close() error {
	err := r.client.Close()
	if r.embedded != nil {
		r.embedded.Close()
	}
	return err
}
