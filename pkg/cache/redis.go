package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"

	"github.com/redis/go-redis/v9"
)

var _ Cache[string, struct{}] = (*Redis[struct{}])(nil)

// Redis keeps JSON-encoded values under prefix+key so several service
// replicas share one cache.
type Redis[V any] struct {
	client  redis.Cmdable
	name    string
	prefix  string
	log     logger.Logger
	metrics metric.Cache
}

func NewRedis[V any](
	client redis.Cmdable,
	name, prefix string,
	log logger.Logger,
	metrics metric.Cache,
) *Redis[V] {
	return &Redis[V]{
		client:  client,
		name:    name,
		prefix:  prefix,
		log:     log,
		metrics: metrics,
	}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var value V

	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		r.metrics.Miss(r.name)
		return value, false
	case err != nil:
		r.fail(ctx, "get", key, err)
		r.metrics.Miss(r.name)
		return value, false
	}

	if err = json.Unmarshal(raw, &value); err != nil {
		r.fail(ctx, "decode", key, err)
		r.Delete(ctx, key)
		r.metrics.Miss(r.name)
		var zero V
		return zero, false
	}

	r.metrics.Hit(r.name)
	return value, true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.fail(ctx, "encode", key, err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err = r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.fail(ctx, "set", key, err)
	}
}

func (r *Redis[V]) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.fail(ctx, "delete", key, err)
		return
	}
	r.metrics.Eviction(r.name, "deleted")
}

func (r *Redis[V]) fail(ctx context.Context, operation, key string, err error) {
	r.metrics.Error(r.name, operation)
	r.log.LogAttrs(ctx, logger.WarnLevel, "redis cache call failed",
		logger.String("cache", r.name),
		logger.String("operation", operation),
		logger.String("key", key),
		logger.Err(err),
	)
}
