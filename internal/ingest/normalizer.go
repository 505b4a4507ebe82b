package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/mailbox"
)

// Notifier 向实时订阅者推送新邮件摘要。实现可以为 nil。
type Notifier interface {
	NotifyNewMail(local string, summary domain.MessageSummary)
}

// Normalizer 将各渠道的来信归一为统一的邮件记录并落库。
//
// 所有渠道共享同一条核心路径：先校验收件人（失败则零写入），
// 再写附件正文，然后写记录，最后追加目录引用。记录先于目录
// 落盘，保证目录里出现的 ID 要么可读、要么已过期，不会指向
// 从未写入的记录。
type Normalizer struct {
	dir                *mailbox.Directory
	recs               *mailbox.Records
	log                *zap.Logger
	notifier           Notifier
	maxAttachmentBytes int64
	previewLength      int
	testSender         string
}

// NewNormalizer 创建归一化器。notifier 可以为 nil。
func NewNormalizer(dir *mailbox.Directory, recs *mailbox.Records, cfg *config.Config, notifier Notifier, log *zap.Logger) *Normalizer {
	return &Normalizer{
		dir:                dir,
		recs:               recs,
		log:                log,
		notifier:           notifier,
		maxAttachmentBytes: cfg.Message.MaxAttachmentBytes,
		previewLength:      cfg.Message.PreviewLength,
		testSender:         "test@" + cfg.Mailbox.Domain,
	}
}

// JSONInput JSON 渠道的来信载荷。
type JSONInput struct {
	To      string            `json:"to" binding:"required"`
	From    string            `json:"from"`
	Subject string            `json:"subject"`
	Text    string            `json:"text"`
	HTML    string            `json:"html"`
	Headers map[string]string `json:"headers"`
}

// MultipartInput 表单渠道的来信载荷，附件由传输层读出后传入。
// Raw 非空时携带完整的原始邮件字节，文本字段退化为覆盖项。
type MultipartInput struct {
	To          string
	From        string
	Subject     string
	Text        string
	HTML        string
	Raw         []byte
	Attachments []*ParsedAttachment
}

// TestInput 测试渠道的最小载荷，发件人由系统合成。
type TestInput struct {
	To      string `json:"to" binding:"required"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// IngestSMTP 处理 SMTP 渠道的来信。to 是信封收件人，信封发件人
// 非空时覆盖信头 From。
func (n *Normalizer) IngestSMTP(ctx context.Context, from, to string, raw []byte) (*domain.MessageRecord, error) {
	parsed, err := ParseEmail(raw)
	if err != nil {
		return nil, err
	}
	if from != "" {
		parsed.From = from
	}
	return n.ingest(ctx, "smtp", to, parsed, raw)
}

// IngestRaw 处理原始 RFC 5322 字节的来信。to 为空时回退到
// 信头 To。
func (n *Normalizer) IngestRaw(ctx context.Context, to string, raw []byte) (*domain.MessageRecord, error) {
	parsed, err := ParseEmail(raw)
	if err != nil {
		return nil, err
	}
	if to == "" {
		to = parsed.To
	}
	return n.ingest(ctx, "raw", to, parsed, raw)
}

// IngestJSON 处理结构化 JSON 渠道的来信。
func (n *Normalizer) IngestJSON(ctx context.Context, in JSONInput) (*domain.MessageRecord, error) {
	parsed := &ParsedEmail{
		Subject:     in.Subject,
		From:        in.From,
		To:          in.To,
		Text:        in.Text,
		HTML:        in.HTML,
		Headers:     in.Headers,
		Attachments: []*ParsedAttachment{},
	}
	return n.ingest(ctx, "json", in.To, parsed, nil)
}

// IngestMultipart 处理表单渠道的来信。带原始邮件文件时先解析
// 邮件本体，表单字段作为覆盖项；否则按结构化字段组装。
func (n *Normalizer) IngestMultipart(ctx context.Context, in MultipartInput) (*domain.MessageRecord, error) {
	if len(in.Raw) > 0 {
		parsed, err := ParseEmail(in.Raw)
		if err != nil {
			return nil, err
		}
		if in.From != "" {
			parsed.From = in.From
		}
		if in.Subject != "" {
			parsed.Subject = in.Subject
		}
		parsed.Attachments = append(parsed.Attachments, in.Attachments...)

		to := in.To
		if to == "" {
			to = parsed.To
		}
		return n.ingest(ctx, "multipart", to, parsed, in.Raw)
	}

	attachments := in.Attachments
	if attachments == nil {
		attachments = []*ParsedAttachment{}
	}
	parsed := &ParsedEmail{
		Subject:     in.Subject,
		From:        in.From,
		To:          in.To,
		Text:        in.Text,
		HTML:        in.HTML,
		Attachments: attachments,
	}
	return n.ingest(ctx, "multipart", in.To, parsed, nil)
}

// IngestTest 处理测试渠道的来信，发件人固定为系统合成地址。
func (n *Normalizer) IngestTest(ctx context.Context, in TestInput) (*domain.MessageRecord, error) {
	parsed := &ParsedEmail{
		Subject:     in.Subject,
		From:        n.testSender,
		To:          in.To,
		Text:        in.Text,
		Attachments: []*ParsedAttachment{},
	}
	return n.ingest(ctx, "test", in.To, parsed, nil)
}

// ingest 所有渠道共用的落库路径。
func (n *Normalizer) ingest(ctx context.Context, channel, to string, parsed *ParsedEmail, raw []byte) (*domain.MessageRecord, error) {
	// 收件人不合法时在任何写入发生前拒绝
	local, address, err := domain.ExtractLocalPart(to)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	metas := make([]domain.AttachmentMeta, 0, len(parsed.Attachments))
	for i, att := range parsed.Attachments {
		stored := n.maxAttachmentBytes <= 0 || att.Size <= n.maxAttachmentBytes
		metas = append(metas, domain.AttachmentMeta{
			Index:       i,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
			Disposition: att.Disposition,
			ContentID:   att.ContentID,
			Stored:      stored,
		})
	}

	html := rewriteInlineReferences(parsed.HTML, id, metas)

	rec := &domain.MessageRecord{
		ID:          id,
		Mailbox:     local,
		To:          address,
		From:        strings.TrimSpace(parsed.From),
		Subject:     parsed.Subject,
		Text:        parsed.Text,
		HTML:        html,
		Raw:         raw,
		ReceivedAt:  time.Now().UTC(),
		Headers:     parsed.Headers,
		Attachments: metas,
	}

	// 附件正文先行，记录其次，目录引用最后
	for i, att := range parsed.Attachments {
		if !metas[i].Stored {
			n.log.Debug("attachment skipped by size ceiling",
				zap.String("id", id),
				zap.String("filename", att.Filename),
				zap.Int64("size", att.Size),
			)
			continue
		}
		if err := n.recs.PutAttachment(ctx, id, i, att.Content); err != nil {
			return nil, fmt.Errorf("store attachment %d: %w", i, err)
		}
	}

	if err := n.recs.Put(ctx, rec); err != nil {
		return nil, err
	}

	if err := n.dir.Append(ctx, local, id); err != nil {
		return nil, err
	}

	n.log.Info("message ingested",
		zap.String("channel", channel),
		zap.String("local", local),
		zap.String("id", id),
		zap.Int("attachments", len(metas)),
	)

	if n.notifier != nil {
		n.notifier.NotifyNewMail(local, domain.MessageSummary{
			ID:         rec.ID,
			From:       rec.From,
			Subject:    rec.Subject,
			Preview:    previewText(rec.Text, n.previewLength),
			ReceivedAt: rec.ReceivedAt,
		})
	}

	return rec, nil
}

// rewriteInlineReferences 把 HTML 里的 cid: 引用改写为附件下载
// 路径。只改写正文已存储的附件，未存储的 cid 引用保持原样。
func rewriteInlineReferences(html, messageID string, metas []domain.AttachmentMeta) string {
	if html == "" {
		return html
	}
	for _, meta := range metas {
		if !meta.Stored || meta.ContentID == "" {
			continue
		}
		target := fmt.Sprintf("/v1/messages/%s/attachments/%d", messageID, meta.Index)
		html = strings.ReplaceAll(html, "cid:"+meta.ContentID, target)
	}
	return html
}

// previewText 截取正文前 n 个字符。
func previewText(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
