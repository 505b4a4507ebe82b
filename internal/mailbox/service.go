package mailbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/domain"
)

// localAlphabet 随机邮箱前缀的字符集（小写字母+数字）
const localAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Service 封装邮箱生命周期与只读投影。
//
// 写路径（收信）不经过本服务，由 ingest 包直接驱动 Directory
// 与 Records；本服务承担邮箱创建/删除与全部读投影。
type Service struct {
	dir           *Directory
	recs          *Records
	log           *zap.Logger
	domainSuffix  string
	localLength   int
	previewLength int
}

// NewService 创建邮箱业务服务。
func NewService(dir *Directory, recs *Records, cfg *config.Config, log *zap.Logger) *Service {
	return &Service{
		dir:           dir,
		recs:          recs,
		log:           log,
		domainSuffix:  cfg.Mailbox.Domain,
		localLength:   cfg.Mailbox.LocalLength,
		previewLength: cfg.Message.PreviewLength,
	}
}

// CreatedMailbox 描述一个新建邮箱。
type CreatedMailbox struct {
	Address   string `json:"address"`
	Local     string `json:"local"`
	ExpiresIn int    `json:"expiresInSeconds"`
}

// Create 创建新的临时邮箱并预注册空目录。
//
// local 为空时生成随机前缀。随机令牌不做去重检查：键空间
// 足够大，撞键概率可忽略；真撞上时旧邮箱被幂等重置。
func (s *Service) Create(ctx context.Context, local string) (*CreatedMailbox, error) {
	if local == "" {
		local = s.randomLocal()
	}

	address := fmt.Sprintf("%s@%s", local, s.domainSuffix)
	validLocal, address, err := domain.ExtractLocalPart(address)
	if err != nil {
		return nil, err
	}
	local = validLocal

	if err := s.dir.Create(ctx, local); err != nil {
		return nil, err
	}

	return &CreatedMailbox{
		Address:   address,
		Local:     local,
		ExpiresIn: int(s.dir.TTL().Seconds()),
	}, nil
}

// randomLocal 生成随机邮箱前缀。
func (s *Service) randomLocal() string {
	b := make([]byte, s.localLength)
	for i := range b {
		b[i] = localAlphabet[rand.Intn(len(localAlphabet))]
	}
	return string(b)
}

// ListInbox 返回邮箱的摘要列表，最新的在前。
//
// 目录里指向已过期记录的 ID 被静默跳过，不视为错误：记录与
// 目录的 TTL 相互独立，悬挂引用是设计内的常态。
func (s *Service) ListInbox(ctx context.Context, local string) []domain.MessageSummary {
	ids := s.dir.ListIDs(ctx, local, DefaultListLimit)

	summaries := make([]domain.MessageSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.recs.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.log.Debug("skip unreadable message in listing",
					zap.String("id", id),
					zap.Error(err),
				)
			}
			continue
		}

		summaries = append(summaries, domain.MessageSummary{
			ID:         rec.ID,
			From:       rec.From,
			Subject:    rec.Subject,
			Preview:    preview(rec.Text, s.previewLength),
			ReceivedAt: rec.ReceivedAt,
		})
	}
	return summaries
}

// Expires 返回邮箱目录的剩余生存时间。
func (s *Service) Expires(ctx context.Context, local string) (time.Duration, error) {
	return s.dir.Expires(ctx, local)
}

// GetDetail 返回单封邮件的完整投影。
func (s *Service) GetDetail(ctx context.Context, messageID string) (*domain.MessageDetail, error) {
	rec, err := s.recs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	attachments := rec.Attachments
	if attachments == nil {
		attachments = []domain.AttachmentMeta{}
	}

	return &domain.MessageDetail{
		ID:          rec.ID,
		From:        rec.From,
		To:          rec.To,
		Subject:     rec.Subject,
		BodyPlain:   rec.Text,
		BodyHTML:    rec.HTML,
		ReceivedAt:  rec.ReceivedAt,
		Headers:     rec.Headers,
		Attachments: attachments,
	}, nil
}

// GetAttachment 返回附件字节及下载所需的元信息。
//
// 附件元数据存在但正文因超限未存储时返回 ErrAttachmentNotStored，
// 与 ErrNotFound 区分。
func (s *Service) GetAttachment(ctx context.Context, messageID string, index int) (*domain.AttachmentFile, error) {
	rec, err := s.recs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(rec.Attachments) {
		return nil, domain.ErrNotFound
	}
	meta := rec.Attachments[index]
	if !meta.Stored {
		return nil, domain.ErrAttachmentNotStored
	}

	payload, err := s.recs.GetAttachment(ctx, messageID, index)
	if err != nil {
		return nil, err
	}

	return &domain.AttachmentFile{
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Content:     payload,
	}, nil
}

// Delete 删除邮箱：先级联删除目录引用的全部仍存在的记录，
// 再移除目录键本身。
func (s *Service) Delete(ctx context.Context, local string) error {
	ids := s.dir.ListIDs(ctx, local, s.dir.maxMessages)
	for _, id := range ids {
		rec, err := s.recs.Get(ctx, id)
		if err != nil {
			// 已过期的引用无需清理
			continue
		}
		if err := s.recs.Delete(ctx, rec); err != nil {
			s.log.Warn("cascade delete message failed",
				zap.String("local", local),
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}

	return s.dir.Delete(ctx, local)
}

// preview 截取正文前 n 个字符作为列表预览。
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
