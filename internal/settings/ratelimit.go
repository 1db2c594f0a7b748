package settings

import (
	"context"
	"time"

	"github.com/gbbspro/gbbs-archive/internal/pkg/cache"
	"github.com/gbbspro/gbbs-archive/internal/pkg/logger"
	"go.uber.org/zap"
)

// RateLimiter 基于 Redis 计数器的按 IP 限流
// 计数器递增与首次设置过期窗口是原子操作，并发请求不会绕过限制
type RateLimiter struct {
	provider Provider
	cache    cache.Cache
}

// NewRateLimiter 创建限流器
func NewRateLimiter(provider Provider, c cache.Cache) *RateLimiter {
	return &RateLimiter{provider: provider, cache: c}
}

// IsExceeded 判断该 IP 在当前窗口内是否已超出下载次数限制
// 限流未开启时直接放行，计数器故障时同样放行，可用性优先
func (l *RateLimiter) IsExceeded(ctx context.Context, ip string) bool {
	agg := l.provider.Settings()
	if !agg.RateLimiting {
		return false
	}

	window := time.Duration(agg.RateLimitWindow) * time.Second
	count, err := l.cache.IncrWithTTL(ctx, cache.RateLimitKey(ip), window)
	if err != nil {
		logger.Warn("限流计数器不可用，本次放行", zap.String("ip", ip), zap.Error(err))
		return false
	}
	return count > int64(agg.RateLimitRequests)
}

// Remaining 返回该 IP 在当前窗口内剩余的下载次数，供响应头提示
func (l *RateLimiter) Remaining(ctx context.Context, ip string) (int64, time.Duration) {
	agg := l.provider.Settings()
	if !agg.RateLimiting {
		return int64(agg.RateLimitRequests), 0
	}

	key := cache.RateLimitKey(ip)
	var count int64
	if err := l.cache.Get(ctx, key, &count); err != nil {
		return int64(agg.RateLimitRequests), 0
	}
	ttl, err := l.cache.TTL(ctx, key)
	if err != nil {
		ttl = 0
	}
	remaining := int64(agg.RateLimitRequests) - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, ttl
}
