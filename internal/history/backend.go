// Package history is the client-owned learning history used by learnctl:
// saved sessions, quiz results, aggregate statistics and settings, kept in a
// small key/value backend with a byte quota.
package history

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"learnapp/internal/database"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"

	"github.com/redis/go-redis/v9"
)

// Backend is a string key/value store. Set must fail with an error matching
// contextutils.ErrQuotaExceeded when the write would push the stored bytes
// past the backend's quota.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// entrySize is the byte cost of one stored key/value pair.
func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func quotaError(quota, needed int64) error {
	return contextutils.WrapErrorf(contextutils.ErrQuotaExceeded,
		"write needs %d bytes, quota is %d", needed, quota)
}

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
	quota  int64
}

// NewMemoryBackend returns an empty backend. A quota <= 0 disables the limit.
func NewMemoryBackend(quotaBytes int64) *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string), quota: quotaBytes}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		var total int64
		for k, v := range m.values {
			if k != key {
				total += entrySize(k, v)
			}
		}
		if needed := total + entrySize(key, value); needed > m.quota {
			return quotaError(m.quota, needed)
		}
	}
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Close() error { return nil }

// OpenBackend builds a backend from a DSN:
//
//	memory://
//	sqlite:///var/lib/learnctl/history.db   (or sqlite://relative/path.db)
//	redis://localhost:6379/0?prefix=learnctl:
func OpenBackend(ctx context.Context, dsn string, quotaBytes int64, logger *observability.Logger) (Backend, error) {
	switch {
	case dsn == "" || dsn == "memory://":
		return NewMemoryBackend(quotaBytes), nil

	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		db, err := database.NewManager(logger).OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(db, quotaBytes), nil

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		prefix := DefaultRedisPrefix
		if u, err := url.Parse(dsn); err == nil {
			if p := u.Query().Get("prefix"); p != "" {
				prefix = p
				q := u.Query()
				q.Del("prefix")
				u.RawQuery = q.Encode()
				dsn = u.String()
			}
		}
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "invalid redis dsn: %v", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "redis is unreachable: %v", err)
		}
		return NewRedisBackend(client, prefix, quotaBytes), nil
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unsupported history store '%s'", dsn)
}
