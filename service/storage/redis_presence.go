package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// RedisPresence backs the Presence contract with a shared redis, which
// is what makes presence visible across gateway processes.
type RedisPresence struct {
	rdb *goredis.Client
}

func NewRedisPresence(rdb *goredis.Client) *RedisPresence {
	return &RedisPresence{rdb: rdb}
}

func (p *RedisPresence) AddToSet(ctx context.Context, key, member string) error {
	return errors.Wrapf(p.rdb.SAdd(ctx, key, member).Err(), "sadd %s", key)
}

func (p *RedisPresence) RemoveFromSet(ctx context.Context, key, member string) error {
	return errors.Wrapf(p.rdb.SRem(ctx, key, member).Err(), "srem %s", key)
}

func (p *RedisPresence) Members(ctx context.Context, key string) ([]string, error) {
	out, err := p.rdb.SMembers(ctx, key).Result()
	return out, errors.Wrapf(err, "smembers %s", key)
}

func (p *RedisPresence) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := p.rdb.SIsMember(ctx, key, member).Result()
	return ok, errors.Wrapf(err, "sismember %s", key)
}

func (p *RedisPresence) Cardinality(ctx context.Context, key string) (int64, error) {
	n, err := p.rdb.SCard(ctx, key).Result()
	return n, errors.Wrapf(err, "scard %s", key)
}

func (p *RedisPresence) RemoveAll(ctx context.Context, key string) error {
	return errors.Wrapf(p.rdb.Del(ctx, key).Err(), "del %s", key)
}

func (p *RedisPresence) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrapf(p.rdb.Set(ctx, key, value, ttl).Err(), "set %s", key)
}

func (p *RedisPresence) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return val, true, nil
}

func (p *RedisPresence) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(p.rdb.Del(ctx, key).Err(), "del %s", key)
}
