package storage

import (
	"context"
	"errors"
	"time"
)

// ErrKeyMissing 表示键不存在或已过期。
var ErrKeyMissing = errors.New("key missing")

// KV 抽象外部键值存储提供的单操作原子能力。
//
// 每个单独调用（get/set/push/trim/expire）由存储端保证原子；
// 跨调用序列不提供事务。核心引擎的一致性完全建立在调用顺序上，
// 不使用任何进程内锁。所有调用都应由调用方通过 ctx 设定超时。
type KV interface {
	// Get 读取字符串键；键不存在或已过期返回 ErrKeyMissing。
	Get(ctx context.Context, key string) (string, error)

	// SetWithExpiry 写入字符串键并设置过期时间。
	SetWithExpiry(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete 删除一个或多个键；键不存在不算错误。
	Delete(ctx context.Context, keys ...string) error

	// ListPushFront 将元素压入列表头部；键不存在时隐式创建。
	ListPushFront(ctx context.Context, key string, values ...string) error

	// ListTrim 裁剪列表，只保留 [start, stop] 闭区间内的元素。
	// 裁剪后为空的列表键被移除（与 Redis 语义一致）。
	ListTrim(ctx context.Context, key string, start, stop int64) error

	// ListRange 返回 [start, stop] 闭区间内的元素。
	// 键不存在返回 ErrKeyMissing。
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Expire 重置键的过期时间；键不存在返回 ErrKeyMissing。
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL 返回键的剩余生存时间；键不存在返回 ErrKeyMissing，
	// 键存在但未设置过期返回 -1。
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping 探测存储连接。
	Ping(ctx context.Context) error

	// Close 关闭底层连接。
	Close() error
}
