package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticProvider 测试用的固定设置源
type staticProvider struct {
	agg Aggregate
}

func (p *staticProvider) Settings() Aggregate { return p.agg }

// fakeCounterCache 内存计数器，按 key 记录计数与窗口
type fakeCounterCache struct {
	counts   map[string]int64
	expires  map[string]time.Time
	incrErr  error
	now      time.Time
	windowed map[string]time.Duration
}

func newFakeCounterCache() *fakeCounterCache {
	return &fakeCounterCache{
		counts:   make(map[string]int64),
		expires:  make(map[string]time.Time),
		windowed: make(map[string]time.Duration),
		now:      time.Now(),
	}
}

func (f *fakeCounterCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return nil
}

func (f *fakeCounterCache) Get(ctx context.Context, key string, target any) error {
	count, ok := f.counts[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	if p, ok := target.(*int64); ok {
		*p = count
		return nil
	}
	return errors.New("unsupported target")
}

func (f *fakeCounterCache) Del(ctx context.Context, keys ...string) error { return nil }

func (f *fakeCounterCache) DelPattern(ctx context.Context, pattern string) error { return nil }

func (f *fakeCounterCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.counts[key]
	return ok, nil
}

func (f *fakeCounterCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	if exp, ok := f.expires[key]; ok && f.now.After(exp) {
		delete(f.counts, key)
		delete(f.expires, key)
	}
	f.counts[key]++
	if f.counts[key] == 1 {
		f.expires[key] = f.now.Add(ttl)
		f.windowed[key] = ttl
	}
	return f.counts[key], nil
}

func (f *fakeCounterCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	exp, ok := f.expires[key]
	if !ok {
		return 0, nil
	}
	return exp.Sub(f.now), nil
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	provider.agg.RateLimitRequests = 3
	c := newFakeCounterCache()
	limiter := NewRateLimiter(provider, c)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.False(t, limiter.IsExceeded(ctx, "203.0.113.7"), "request %d should pass", i+1)
	}
	assert.True(t, limiter.IsExceeded(ctx, "203.0.113.7"), "request over limit should be rejected")
}

func TestRateLimiterPerIPIsolation(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	provider.agg.RateLimitRequests = 1
	c := newFakeCounterCache()
	limiter := NewRateLimiter(provider, c)

	ctx := context.Background()
	require.False(t, limiter.IsExceeded(ctx, "203.0.113.7"))
	require.True(t, limiter.IsExceeded(ctx, "203.0.113.7"))
	// 另一个 IP 有独立的计数窗口
	assert.False(t, limiter.IsExceeded(ctx, "198.51.100.9"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	provider.agg.RateLimitRequests = 1
	provider.agg.RateLimitWindow = 60
	c := newFakeCounterCache()
	limiter := NewRateLimiter(provider, c)

	ctx := context.Background()
	require.False(t, limiter.IsExceeded(ctx, "203.0.113.7"))
	require.True(t, limiter.IsExceeded(ctx, "203.0.113.7"))

	// 窗口过期后计数器重置
	c.now = c.now.Add(61 * time.Second)
	assert.False(t, limiter.IsExceeded(ctx, "203.0.113.7"))
}

func TestRateLimiterDisabled(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	provider.agg.RateLimiting = false
	c := newFakeCounterCache()
	limiter := NewRateLimiter(provider, c)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		assert.False(t, limiter.IsExceeded(ctx, "203.0.113.7"))
	}
	assert.Empty(t, c.counts, "disabled limiter should not touch the counter")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	c := newFakeCounterCache()
	c.incrErr = errors.New("redis down")
	limiter := NewRateLimiter(provider, c)

	assert.False(t, limiter.IsExceeded(context.Background(), "203.0.113.7"))
}

func TestRateLimiterRemaining(t *testing.T) {
	provider := &staticProvider{agg: Defaults()}
	provider.agg.RateLimitRequests = 5
	c := newFakeCounterCache()
	limiter := NewRateLimiter(provider, c)

	ctx := context.Background()
	limiter.IsExceeded(ctx, "203.0.113.7")
	limiter.IsExceeded(ctx, "203.0.113.7")

	remaining, ttl := limiter.Remaining(ctx, "203.0.113.7")
	assert.Equal(t, int64(3), remaining)
	assert.Greater(t, ttl, time.Duration(0))
}
