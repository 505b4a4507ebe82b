package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Salojohn/temp-mail-api/internal/storage"
)

// entry 单个键的存储单元
type entry struct {
	value     string
	list      []string
	isList    bool
	expiresAt time.Time // 零值表示永不过期
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// KV 内存版 storage.KV 实现，带真实的按键过期语义。
//
// 用于开发模式和测试，替代外部 Redis。过期在访问时惰性判定，
// 不跑后台清理协程。
type KV struct {
	mu   sync.Mutex
	data map[string]*entry
}

var _ storage.KV = (*KV)(nil)

// NewKV 创建内存键值存储。
func NewKV() *KV {
	return &KV{
		data: make(map[string]*entry),
	}
}

// get 取出未过期的条目；过期条目顺手删除。调用方必须持锁。
func (s *KV) get(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Get 读取字符串键。
func (s *KV) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok || e.isList {
		return "", storage.ErrKeyMissing
	}
	return e.value, nil
}

// SetWithExpiry 写入字符串键并设置过期时间。
func (s *KV) SetWithExpiry(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

// Delete 删除键。
func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// ListPushFront 将元素压入列表头部；键不存在时隐式创建。
func (s *KV) ListPushFront(ctx context.Context, key string, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok {
		e = &entry{isList: true}
		s.data[key] = e
	}

	// LPUSH 语义：依次压入，后压的在更前
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return nil
}

// ListTrim 裁剪列表到 [start, stop] 闭区间；空结果删除键。
func (s *KV) ListTrim(ctx context.Context, key string, start, stop int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok || !e.isList {
		return nil
	}

	lo, hi, ok := clampRange(start, stop, int64(len(e.list)))
	if !ok {
		delete(s.data, key)
		return nil
	}

	e.list = e.list[lo : hi+1]
	return nil
}

// ListRange 返回 [start, stop] 闭区间内的元素。
func (s *KV) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok || !e.isList {
		return nil, storage.ErrKeyMissing
	}

	lo, hi, ok := clampRange(start, stop, int64(len(e.list)))
	if !ok {
		return []string{}, nil
	}

	out := make([]string, hi-lo+1)
	copy(out, e.list[lo:hi+1])
	return out, nil
}

// Expire 重置键的过期时间。
func (s *KV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok {
		return storage.ErrKeyMissing
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return nil
}

// TTL 返回键的剩余生存时间。
func (s *KV) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.get(key)
	if !ok {
		return 0, storage.ErrKeyMissing
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return time.Until(e.expiresAt), nil
}

// Ping 永远成功。
func (s *KV) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close 清空数据。
func (s *KV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*entry)
	return nil
}

// Len 返回当前未过期的键数量，仅供测试断言使用。
func (s *KV) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
			continue
		}
		n++
	}
	return n
}

// clampRange 将 Redis 风格的闭区间（支持负索引）规约到 [0, n)。
// 区间为空时第三个返回值为 false。
func clampRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
