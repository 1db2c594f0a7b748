package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Cache 缓存通用接口
type Cache interface {
	// Set 在缓存中设置一个值，并指定过期时间。
	// value 应该是一个可以被 JSON 封送的结构体或指向结构体的指针。
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get 从缓存中检索一个值，并将其解编组到目标接口。
	// target 应该是一个指针，指向希望解编组成的类型。
	// key 不存在时返回 ErrCacheMiss。
	Get(ctx context.Context, key string, target any) error

	// Del 删除一个或多个 key
	Del(ctx context.Context, keys ...string) error

	// DelPattern 删除匹配 pattern 的所有 key (SCAN + DEL)
	DelPattern(ctx context.Context, pattern string) error

	// Exists 检查 key 是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// IncrWithTTL 原子递增计数器并返回递增后的值。
	// 计数器首次创建时设置过期时间，后续递增不重置窗口。
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL 返回 key 的剩余过期时间
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// 统计与限流使用的缓存键
// 命名沿用 gbbs_ 前缀，便于在 Redis 中按前缀清理

func RateLimitKey(ip string) string {
	sum := md5.Sum([]byte(ip))
	return "gbbs:rate_limit:" + hex.EncodeToString(sum[:])
}

func FileSizeKey(url string) string {
	sum := md5.Sum([]byte(url))
	return "gbbs:file_size:" + hex.EncodeToString(sum[:])
}

func TotalDownloadsKey() string {
	return "gbbs:stats:total_downloads"
}

func TotalFilesKey(search, volume string) string {
	sum := md5.Sum([]byte(search + volume))
	return "gbbs:stats:total_files:" + hex.EncodeToString(sum[:])
}

func TotalSizeKey(search, volume string) string {
	sum := md5.Sum([]byte(search + volume))
	return "gbbs:stats:total_size:" + hex.EncodeToString(sum[:])
}

func VolumeCountKey() string {
	return "gbbs:stats:volume_count"
}

func NewestArchiveKey() string {
	return "gbbs:stats:newest_archive"
}
