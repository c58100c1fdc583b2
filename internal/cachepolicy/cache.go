package cachepolicy

import (
	"context"
	"sync"
	"time"

	"learnapp/internal/config"
	contextutils "learnapp/internal/utils"
)

type cacheEntry struct {
	body     []byte
	storedAt time.Time
}

// ResponseCache keeps the last good body per request key for the API client.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxAge  time.Duration
	now     func() time.Time
}

// NewResponseCache returns an empty cache whose CacheFirst entries stay
// fresh for maxAge. A non-positive maxAge uses the server's max-age.
func NewResponseCache(maxAge time.Duration) *ResponseCache {
	if maxAge <= 0 {
		maxAge = config.CacheFirstMaxAge
	}
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// WithClock replaces the cache's clock.
func (rc *ResponseCache) WithClock(now func() time.Time) *ResponseCache {
	rc.now = now
	return rc
}

// Get returns the stored body for key. fresh reports whether it is younger
// than the cache's max age.
func (rc *ResponseCache) Get(key string) (body []byte, fresh bool, ok bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	entry, ok := rc.entries[key]
	if !ok {
		return nil, false, false
	}
	return entry.body, rc.now().Sub(entry.storedAt) < rc.maxAge, true
}

// Put stores body under key.
func (rc *ResponseCache) Put(key string, body []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = cacheEntry{body: append([]byte(nil), body...), storedAt: rc.now()}
}

// Invalidate drops every stored body.
func (rc *ResponseCache) Invalidate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[string]cacheEntry)
}

// Fetch resolves key according to strategy, calling fetch when the network
// has to be asked. NetworkFirst serves the last good copy only when fetch
// fails because the server could not be reached.
func (rc *ResponseCache) Fetch(ctx context.Context, strategy Strategy, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	switch strategy {
	case CacheFirst:
		if body, fresh, ok := rc.Get(key); ok && fresh {
			return body, nil
		}
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		rc.Put(key, body)
		return body, nil

	case NetworkFirst:
		body, err := fetch(ctx)
		if err == nil {
			rc.Put(key, body)
			return body, nil
		}
		if unreachable(err) {
			if cached, _, ok := rc.Get(key); ok {
				return cached, nil
			}
		}
		return nil, err

	default:
		return fetch(ctx)
	}
}

func unreachable(err error) bool {
	switch contextutils.GetErrorCode(err) {
	case contextutils.ErrorCodeServiceUnavailable, contextutils.ErrorCodeTimeout:
		return true
	}
	return false
}
