package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/storage"
)

// Records 存取规范化的邮件记录及其附件正文。
//
// 每条记录以独立 TTL 写入，与目录的 TTL 互不关联：记录先于
// 目录引用过期是常态，读路径按 ErrNotFound 跳过。附件正文
// 跟随所属记录的 TTL，没有独立的过期调度。
type Records struct {
	kv         storage.KV
	log        *zap.Logger
	messageTTL time.Duration
	timeout    time.Duration
}

// NewRecords 创建邮件记录存储。
func NewRecords(kv storage.KV, messageTTL time.Duration, timeout time.Duration, log *zap.Logger) *Records {
	return &Records{
		kv:         kv,
		log:        log,
		messageTTL: messageTTL,
		timeout:    timeout,
	}
}

// TTL 返回配置的邮件记录生存窗口。
func (r *Records) TTL() time.Duration {
	return r.messageTTL
}

func msgKey(id string) string {
	return "msg:" + id
}

func attKey(id string, index int) string {
	return fmt.Sprintf("att:%s:%d", id, index)
}

func (r *Records) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Put 序列化并写入一条邮件记录，带独立 TTL。
// 同 ID 的已有记录会被静默覆盖（随机 ID 撞键的接受代价）。
func (r *Records) Put(ctx context.Context, rec *domain.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.kv.SetWithExpiry(ctx, msgKey(rec.ID), string(data), r.messageTTL); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

// Get 读取一条邮件记录；不存在或已过期返回 domain.ErrNotFound。
func (r *Records) Get(ctx context.Context, id string) (*domain.MessageRecord, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	data, err := r.kv.Get(ctx, msgKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyMissing) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load message: %w", err)
	}

	var rec domain.MessageRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &rec, nil
}

// Delete 显式移除一条记录及其已存储的附件正文。
// 仅用于删除邮箱时的级联清理；常规销毁路径是 TTL 过期。
func (r *Records) Delete(ctx context.Context, rec *domain.MessageRecord) error {
	keys := []string{msgKey(rec.ID)}
	for _, att := range rec.Attachments {
		if att.Stored {
			keys = append(keys, attKey(rec.ID, att.Index))
		}
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	return r.kv.Delete(ctx, keys...)
}

// PutAttachment 以 base64 编码写入附件正文，TTL 与邮件记录一致。
func (r *Records) PutAttachment(ctx context.Context, messageID string, index int, payload []byte) error {
	encoded := base64.StdEncoding.EncodeToString(payload)

	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.kv.SetWithExpiry(ctx, attKey(messageID, index), encoded, r.messageTTL); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	return nil
}

// GetAttachment 读取并解码附件正文；不存在返回 domain.ErrNotFound。
func (r *Records) GetAttachment(ctx context.Context, messageID string, index int) ([]byte, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	encoded, err := r.kv.Get(ctx, attKey(messageID, index))
	if err != nil {
		if errors.Is(err, storage.ErrKeyMissing) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load attachment: %w", err)
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return payload, nil
}
