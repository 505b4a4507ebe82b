package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/storage"
)

// Client 基于 go-redis 实现 storage.KV 接口。
//
// 单个客户端实例是进程内共享的长生命周期资源，内部连接池
// 支撑所有并发操作，不做按请求建连。
type Client struct {
	rdb *goredis.Client
	log *zap.Logger
}

var _ storage.KV = (*Client)(nil)

// New 创建新的 Redis 客户端并验证连通性。
func New(cfg *config.RedisConfig, log *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		rdb: rdb,
		log: log,
	}, nil
}

// Get 读取字符串键。
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrKeyMissing
		}
		return "", err
	}
	return val, nil
}

// SetWithExpiry 写入字符串键并设置过期时间。
func (c *Client) SetWithExpiry(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete 删除键。
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// ListPushFront 将元素压入列表头部。
func (c *Client) ListPushFront(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	return c.rdb.LPush(ctx, key, args...).Err()
}

// ListTrim 裁剪列表到 [start, stop] 区间。
func (c *Client) ListTrim(ctx context.Context, key string, start, stop int64) error {
	return c.rdb.LTrim(ctx, key, start, stop).Err()
}

// ListRange 返回 [start, stop] 区间内的元素。
func (c *Client) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	// Redis 对不存在的键返回空列表；用 EXISTS 区分"存在但空"
	// 不值得一次往返，这里以空列表代表键不存在。
	if len(vals) == 0 {
		return nil, storage.ErrKeyMissing
	}
	return vals, nil
}

// Expire 重置键的过期时间。
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := c.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrKeyMissing
	}
	return nil
}

// TTL 返回键的剩余生存时间。
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis 保留 Redis 的特殊返回值：-2 键不存在，-1 无过期
	switch d {
	case time.Duration(-2):
		return 0, storage.ErrKeyMissing
	case time.Duration(-1):
		return -1, nil
	}
	return d, nil
}

// Ping 测试 Redis 连接。
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (c *Client) Close() error {
	err := c.rdb.Close()
	if err != nil {
		c.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	c.log.Info("Redis connection closed")
	return nil
}
