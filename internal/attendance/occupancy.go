package attendance

import (
	"context"
	"fmt"

	"github.com/jorgeteixe/hackackathon/pkg/redis"
)

const occupancyKey = "attendance:occupancy"

// Gauge tracks the live headcount. It is a convenience counter, not the
// ledger: the attendance table stays authoritative, and gauge failures
// never block a scan.
type Gauge interface {
	Enter(ctx context.Context) error
	Leave(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// RedisGauge keeps the headcount in a Redis counter shared by every desk.
type RedisGauge struct {
	client *redis.Client
}

// NewRedisGauge creates the gauge.
func NewRedisGauge(client *redis.Client) *RedisGauge {
	return &RedisGauge{client: client}
}

func (g *RedisGauge) Enter(ctx context.Context) error {
	return g.client.Incr(ctx, occupancyKey).Err()
}

func (g *RedisGauge) Leave(ctx context.Context) error {
	n, err := g.client.Decr(ctx, occupancyKey).Result()
	if err != nil {
		return err
	}
	// Exit-only scans can push below zero; pin it so the dashboard never
	// shows a negative hall.
	if n < 0 {
		return g.client.Set(ctx, occupancyKey, 0, 0).Err()
	}
	return nil
}

func (g *RedisGauge) Count(ctx context.Context) (int64, error) {
	n, err := g.client.Get(ctx, occupancyKey).Int64()
	if err != nil {
		if redis.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read occupancy: %w", err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
