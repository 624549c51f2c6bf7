package pipeline

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const assignmentsKey = "assignments:workers"

// RedisResolver reads worker-to-zone assignments maintained by the
// workforce system in a Redis hash. A miss or a Redis error resolves to
// "no assignment" so the caller falls back to the holding zone.
type RedisResolver struct {
	client *redis.Client
}

func NewRedisResolver(client *redis.Client) *RedisResolver {
	return &RedisResolver{client: client}
}

func (r *RedisResolver) ZoneFor(workerID string) (string, bool) {
	if r.client == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	zone, err := r.client.HGet(ctx, assignmentsKey, workerID).Result()
	if err != nil || zone == "" {
		return "", false
	}
	return zone, true
}
