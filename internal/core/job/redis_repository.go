package job

import (
	"context"
	"errors"
	"sync"

	redisv8 "github.com/go-redis/redis/v8"

	rds "recfetch/internal/platform/redis"
)

// RedisRepository keeps job records in redis so they survive a process
// restart. Records age out on their own: terminal jobs get a longer TTL so
// a client has time to collect the result.
type RedisRepository struct {
	redis *rds.Service
	// Update serialization between the owning worker and the cancel
	// endpoint; redis itself only sees whole-record writes.
	mu sync.Mutex
}

func NewRedisRepository(redis *rds.Service) *RedisRepository {
	return &RedisRepository{redis: redis}
}

func key(id string) string { return "batchjob:" + id }

func ttl(p Phase) int {
	if p.Terminal() {
		return 3600
	}
	return 600
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := r.redis.CacheGet(ctx, key(id), &rec); err != nil {
		if errors.Is(err, redisv8.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RedisRepository) Put(ctx context.Context, rec *Record) error {
	return r.redis.CacheSet(ctx, key(rec.ID), rec, ttl(rec.Phase))
}

func (r *RedisRepository) Update(ctx context.Context, id string, mutate func(*Record) error) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	if err := r.Put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	return r.redis.CacheDel(ctx, key(id))
}
