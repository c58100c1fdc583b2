package history

import (
	"context"
	"errors"
	"sort"
	"strings"

	contextutils "learnapp/internal/utils"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces history keys in a shared redis.
const DefaultRedisPrefix = "learnctl:"

// RedisBackend stores values as plain redis strings under a key prefix.
// The quota covers only keys under that prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
	quota  int64
}

func NewRedisBackend(client *redis.Client, prefix string, quotaBytes int64) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, quota: quotaBytes}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return v, true, nil
}

// usedBytes sums key and value sizes of every prefixed key except skip.
func (r *RedisBackend) usedBytes(ctx context.Context, skip string) (int64, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	pipe := r.client.Pipeline()
	lens := make(map[string]*redis.IntCmd, len(keys))
	for _, k := range keys {
		if k == skip {
			continue
		}
		lens[k] = pipe.StrLen(ctx, r.prefix+k)
	}
	if len(lens) == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	var total int64
	for k, cmd := range lens {
		total += int64(len(k)) + cmd.Val()
	}
	return total, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	if r.quota > 0 {
		used, err := r.usedBytes(ctx, key)
		if err != nil {
			return err
		}
		if needed := used + entrySize(key, value); needed > r.quota {
			return quotaError(r.quota, needed)
		}
	}
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	return nil
}

func (r *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrStorageFailure, err.Error())
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
