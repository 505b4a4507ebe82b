package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/mailbox"
	"github.com/Salojohn/temp-mail-api/internal/storage/memory"
)

type capturedNotify struct {
	local   string
	summary domain.MessageSummary
}

// recordingNotifier 记录推送调用，供断言使用。
type recordingNotifier struct {
	calls []capturedNotify
}

func (r *recordingNotifier) NotifyNewMail(local string, summary domain.MessageSummary) {
	r.calls = append(r.calls, capturedNotify{local: local, summary: summary})
}

func newTestNormalizer(kv *memory.KV, maxAttachmentBytes int64, notifier Notifier) (*Normalizer, *mailbox.Service) {
	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			Domain:      "temp-mail.gr",
			InboxTTL:    10 * time.Minute,
			MaxMessages: 200,
			LocalLength: 10,
		},
		Message: config.MessageConfig{
			TTL:                10 * time.Minute,
			MaxAttachmentBytes: maxAttachmentBytes,
			PreviewLength:      120,
		},
	}
	log := zap.NewNop()
	dir := mailbox.NewDirectory(kv, cfg.Mailbox.InboxTTL, cfg.Mailbox.MaxMessages, time.Second, log)
	recs := mailbox.NewRecords(kv, cfg.Message.TTL, time.Second, log)
	norm := NewNormalizer(dir, recs, cfg, notifier, log)
	svc := mailbox.NewService(dir, recs, cfg, log)
	return norm, svc
}

func TestNormalizer_IngestRaw(t *testing.T) {
	kv := memory.NewKV()
	norm, svc := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	raw := []byte("From: Alice <alice@example.com>\r\n" +
		"To: FOO@Example.com\r\n" +
		"Subject: greetings\r\n" +
		"\r\n" +
		"hello there\r\n")

	t.Run("收件人大小写与域名被归一", func(t *testing.T) {
		rec, err := norm.IngestRaw(ctx, "FOO@Example.com", raw)

		require.NoError(t, err)
		assert.Equal(t, "foo", rec.Mailbox)
		assert.Equal(t, "foo@example.com", rec.To)
		assert.Equal(t, "greetings", rec.Subject)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, raw, rec.Raw)

		// 端到端：列表与详情均可见
		list := svc.ListInbox(ctx, "foo")
		require.Len(t, list, 1)
		assert.Equal(t, rec.ID, list[0].ID)

		detail, err := svc.GetDetail(ctx, rec.ID)
		require.NoError(t, err)
		assert.Contains(t, detail.BodyPlain, "hello there")
	})

	t.Run("to为空时回退到信头收件人", func(t *testing.T) {
		rec, err := norm.IngestRaw(ctx, "", raw)

		require.NoError(t, err)
		assert.Equal(t, "foo", rec.Mailbox)
	})

	t.Run("信头带显示名时仍能路由", func(t *testing.T) {
		named := []byte("From: alice@example.com\r\n" +
			"To: Bob Jones <bob@temp-mail.gr>\r\n" +
			"Subject: named\r\n" +
			"\r\n" +
			"body\r\n")

		rec, err := norm.IngestRaw(ctx, "", named)

		require.NoError(t, err)
		assert.Equal(t, "bob", rec.Mailbox)
		assert.Equal(t, "bob@temp-mail.gr", rec.To)

		list := svc.ListInbox(ctx, "bob")
		require.Len(t, list, 1)
		assert.Equal(t, rec.ID, list[0].ID)
	})
}

func TestNormalizer_InvalidRecipientZeroWrites(t *testing.T) {
	kv := memory.NewKV()
	norm, _ := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	raw := []byte("From: a@b.com\r\n\r\nbody\r\n")

	_, err := norm.IngestRaw(ctx, "no-at-sign", raw)

	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
	// 拒绝发生在任何写入之前
	assert.Equal(t, 0, kv.Len())
}

func TestNormalizer_ParseFailureZeroWrites(t *testing.T) {
	kv := memory.NewKV()
	norm, _ := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	_, err := norm.IngestRaw(ctx, "foo@temp-mail.gr", []byte("garbage"))

	assert.ErrorIs(t, err, domain.ErrParseFailed)
	assert.Equal(t, 0, kv.Len())
}

func TestNormalizer_AttachmentCeiling(t *testing.T) {
	kv := memory.NewKV()
	// 上限 16 字节，制造一存一弃
	norm, svc := newTestNormalizer(kv, 16, nil)
	ctx := context.Background()

	small := &ParsedAttachment{
		Filename:    "small.txt",
		ContentType: "text/plain",
		Size:        5,
		Disposition: "attachment",
		Content:     []byte("hello"),
	}
	big := &ParsedAttachment{
		Filename:    "big.bin",
		ContentType: "application/octet-stream",
		Size:        64,
		Disposition: "attachment",
		Content:     make([]byte, 64),
	}

	rec, err := norm.IngestMultipart(ctx, MultipartInput{
		To:          "foo@temp-mail.gr",
		From:        "sender@example.com",
		Subject:     "sizes",
		Text:        "two files",
		Attachments: []*ParsedAttachment{small, big},
	})
	require.NoError(t, err)

	require.Len(t, rec.Attachments, 2)
	assert.True(t, rec.Attachments[0].Stored)
	assert.False(t, rec.Attachments[1].Stored)
	// 超限附件仍保留完整元数据
	assert.Equal(t, "big.bin", rec.Attachments[1].Filename)
	assert.Equal(t, int64(64), rec.Attachments[1].Size)

	file, err := svc.GetAttachment(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), file.Content)

	_, err = svc.GetAttachment(ctx, rec.ID, 1)
	assert.ErrorIs(t, err, domain.ErrAttachmentNotStored)
}

func TestNormalizer_InlineReferenceRewrite(t *testing.T) {
	kv := memory.NewKV()
	norm, _ := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	logo := &ParsedAttachment{
		Filename:    "logo.png",
		ContentType: "image/png",
		Size:        4,
		Disposition: "inline",
		ContentID:   "logo123",
		Content:     []byte{1, 2, 3, 4},
	}

	rec, err := norm.IngestMultipart(ctx, MultipartInput{
		To:          "foo@temp-mail.gr",
		HTML:        `<img src="cid:logo123">`,
		Attachments: []*ParsedAttachment{logo},
	})
	require.NoError(t, err)

	expected := "/v1/messages/" + rec.ID + "/attachments/0"
	assert.Contains(t, rec.HTML, expected)
	assert.NotContains(t, rec.HTML, "cid:logo123")
}

func TestNormalizer_IngestJSON(t *testing.T) {
	kv := memory.NewKV()
	notifier := &recordingNotifier{}
	norm, svc := newTestNormalizer(kv, 2*1024*1024, notifier)
	ctx := context.Background()

	rec, err := norm.IngestJSON(ctx, JSONInput{
		To:      "Foo@Temp-Mail.gr",
		From:    "Sender@Example.com",
		Subject: "json mail",
		Text:    "structured body",
		HTML:    "<p>structured body</p>",
		Headers: map[string]string{"X-Origin": "api"},
	})

	require.NoError(t, err)
	assert.Equal(t, "foo", rec.Mailbox)
	assert.Equal(t, "Sender@Example.com", rec.From)
	assert.Nil(t, rec.Raw)

	detail, err := svc.GetDetail(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "api", detail.Headers["X-Origin"])

	// 新邮件推送了一次摘要
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "foo", notifier.calls[0].local)
	assert.Equal(t, rec.ID, notifier.calls[0].summary.ID)
	assert.Equal(t, "structured body", notifier.calls[0].summary.Preview)
}

func TestNormalizer_IngestTest(t *testing.T) {
	kv := memory.NewKV()
	norm, svc := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	rec, err := norm.IngestTest(ctx, TestInput{
		To:      "foo@temp-mail.gr",
		Subject: "probe",
		Text:    "ping",
	})

	require.NoError(t, err)
	assert.Equal(t, "test@temp-mail.gr", rec.From)

	list := svc.ListInbox(ctx, "foo")
	require.Len(t, list, 1)
	assert.Equal(t, "probe", list[0].Subject)
}

func TestNormalizer_IngestSMTP(t *testing.T) {
	kv := memory.NewKV()
	norm, _ := newTestNormalizer(kv, 2*1024*1024, nil)
	ctx := context.Background()

	raw := []byte("From: header@example.com\r\n" +
		"To: other@elsewhere.org\r\n" +
		"Subject: envelope wins\r\n" +
		"\r\n" +
		"body\r\n")

	// 信封收件人与信头收件人不同时以信封为准
	rec, err := norm.IngestSMTP(ctx, "envelope@example.com", "foo@temp-mail.gr", raw)

	require.NoError(t, err)
	assert.Equal(t, "foo", rec.Mailbox)
	assert.Equal(t, "envelope@example.com", rec.From)
}
