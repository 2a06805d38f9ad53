// Package cache stores short-lived JSON snapshots (leaderboards) in Redis.
package cache

import (
	"context"
	"time"
)

// Store is satisfied by RedisStore and Noop.
type Store interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Noop is used when Redis is not configured: every read misses.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Noop) DeletePattern(context.Context, string) error           { return nil }
