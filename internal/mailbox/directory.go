package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/storage"
)

// DefaultListLimit 收件箱列表默认返回的最大邮件数
const DefaultListLimit = 50

// initSentinel 占位元素。存储端的空列表键不存在，新建邮箱时
// 压入该哨兵强制键存在，使"已创建但为空"与"从未创建/已过期"
// 可以区分。读路径统一过滤该元素。
const initSentinel = "@init"

// Directory 维护每个邮箱的有序、定长、带 TTL 的邮件 ID 列表。
//
// 不持有任何进程内锁：跨操作一致性完全依赖存储端单操作的
// 原子性。Append 的 push/trim/expire 三步不是整体原子，进程
// 在步骤之间崩溃时目录 TTL 可能短暂陈旧或列表瞬时超界，属于
// 可容忍的降级，读者观察不到数据损坏。
type Directory struct {
	kv          storage.KV
	log         *zap.Logger
	inboxTTL    time.Duration
	maxMessages int
	timeout     time.Duration
}

// NewDirectory 创建邮箱目录引擎。
func NewDirectory(kv storage.KV, inboxTTL time.Duration, maxMessages int, timeout time.Duration, log *zap.Logger) *Directory {
	return &Directory{
		kv:          kv,
		log:         log,
		inboxTTL:    inboxTTL,
		maxMessages: maxMessages,
		timeout:     timeout,
	}
}

// TTL 返回配置的收件箱生存窗口。
func (d *Directory) TTL() time.Duration {
	return d.inboxTTL
}

func (d *Directory) key(local string) string {
	return "inbox:" + local
}

// bound 给存储调用设定超时上界。
func (d *Directory) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

// Create 建立（或幂等重置）一个空的邮箱目录并设置 TTL。
//
// 调用完成后 ListIDs 立即返回空序列而非"不存在"。同名目录
// 的旧内容会被清空，随机令牌撞键时接受这一覆盖语义。
func (d *Directory) Create(ctx context.Context, local string) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	key := d.key(local)

	if err := d.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset directory: %w", err)
	}
	if err := d.kv.ListPushFront(ctx, key, initSentinel); err != nil {
		return fmt.Errorf("init directory: %w", err)
	}
	if err := d.kv.Expire(ctx, key, d.inboxTTL); err != nil {
		return fmt.Errorf("expire directory: %w", err)
	}
	return nil
}

// Append 将邮件 ID 压入目录头部，裁剪到保留上限，并将 TTL
// 重置（而非顺延）为完整的收件箱窗口。
//
// 对从未创建（或已过期）的目录调用等价于惰性创建：push 隐式
// 建键，expire 赋予默认窗口。
func (d *Directory) Append(ctx context.Context, local, messageID string) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	key := d.key(local)

	if err := d.kv.ListPushFront(ctx, key, messageID); err != nil {
		return fmt.Errorf("push message id: %w", err)
	}
	if err := d.kv.ListTrim(ctx, key, 0, int64(d.maxMessages)-1); err != nil {
		return fmt.Errorf("trim directory: %w", err)
	}
	if err := d.kv.Expire(ctx, key, d.inboxTTL); err != nil {
		return fmt.Errorf("expire directory: %w", err)
	}
	return nil
}

// ListIDs 返回最多 limit 条邮件 ID，最新的在前。
//
// 目录不存在、已过期、或存储调用超时都降级为空序列，从不向
// 调用方抛错，读路径的缺数据是正常控制流。
func (d *Directory) ListIDs(ctx context.Context, local string, limit int) []string {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ctx, cancel := d.bound(ctx)
	defer cancel()

	// 多取一个槽位以覆盖可能混在其中的哨兵元素
	vals, err := d.kv.ListRange(ctx, d.key(local), 0, int64(limit))
	if err != nil {
		if !errors.Is(err, storage.ErrKeyMissing) {
			d.log.Warn("directory read degraded to empty",
				zap.String("local", local),
				zap.Error(err),
			)
		}
		return []string{}
	}

	ids := make([]string, 0, len(vals))
	for _, v := range vals {
		if v == initSentinel {
			continue
		}
		ids = append(ids, v)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// Expires 返回目录的剩余生存时间。
func (d *Directory) Expires(ctx context.Context, local string) (time.Duration, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.kv.TTL(ctx, d.key(local))
}

// Delete 直接移除目录键。级联删除引用的邮件记录由调用方负责。
func (d *Directory) Delete(ctx context.Context, local string) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	return d.kv.Delete(ctx, d.key(local))
}
