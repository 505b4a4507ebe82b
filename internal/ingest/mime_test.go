package ingest

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Salojohn/temp-mail-api/internal/domain"
)

func TestParseEmail_PlainText(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"To: box@temp-mail.gr\r\n" +
		"Subject: hello\r\n" +
		"Message-Id: <abc@example.com>\r\n" +
		"\r\n" +
		"plain body\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", parsed.From)
	assert.Equal(t, "box@temp-mail.gr", parsed.To)
	assert.Equal(t, "hello", parsed.Subject)
	assert.Equal(t, "plain body\r\n", parsed.Text)
	assert.Empty(t, parsed.HTML)
	assert.Empty(t, parsed.Attachments)

	// 顶层头部被完整保留
	assert.Equal(t, "<abc@example.com>", parsed.Headers["Message-Id"])
	assert.Equal(t, "hello", parsed.Headers["Subject"])
}

func TestParseEmail_DisplayNameRecipient(t *testing.T) {
	t.Run("显示名形式只保留地址", func(t *testing.T) {
		raw := []byte("From: alice@example.com\r\n" +
			"To: Bob Jones <bob@temp-mail.gr>\r\n" +
			"Subject: hi\r\n" +
			"\r\n" +
			"body\r\n")

		parsed, err := ParseEmail(raw)

		require.NoError(t, err)
		assert.Equal(t, "bob@temp-mail.gr", parsed.To)
		// 原始头部不受影响
		assert.Equal(t, "Bob Jones <bob@temp-mail.gr>", parsed.Headers["To"])
	})

	t.Run("多个收件人取第一个", func(t *testing.T) {
		raw := []byte("To: \"Jones, Bob\" <bob@temp-mail.gr>, carol@temp-mail.gr\r\n" +
			"\r\n" +
			"body\r\n")

		parsed, err := ParseEmail(raw)

		require.NoError(t, err)
		assert.Equal(t, "bob@temp-mail.gr", parsed.To)
	})

	t.Run("无法解析时原样保留", func(t *testing.T) {
		raw := []byte("To: not an address at all\r\n" +
			"\r\n" +
			"body\r\n")

		parsed, err := ParseEmail(raw)

		require.NoError(t, err)
		assert.Equal(t, "not an address at all", parsed.To)
	})
}

func TestParseEmail_EncodedSubject(t *testing.T) {
	raw := []byte("From: a@b.com\r\n" +
		"Subject: =?UTF-8?B?5L2g5aW9?=\r\n" +
		"\r\n" +
		"body\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Equal(t, "你好", parsed.Subject)
}

func TestParseEmail_MultipartAlternative(t *testing.T) {
	raw := []byte("From: a@b.com\r\n" +
		"To: box@temp-mail.gr\r\n" +
		"Subject: alt\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"BOUND\"\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain part\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html part</p>\r\n" +
		"--BOUND--\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "plain part")
	assert.Contains(t, parsed.HTML, "<p>html part</p>")
	assert.Empty(t, parsed.Attachments)
}

func TestParseEmail_QuotedPrintableBody(t *testing.T) {
	raw := []byte("From: a@b.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "café")
}

func TestParseEmail_WithAttachment(t *testing.T) {
	payload := []byte("attachment payload")
	encoded := base64.StdEncoding.EncodeToString(payload)

	raw := []byte("From: a@b.com\r\n" +
		"To: box@temp-mail.gr\r\n" +
		"Subject: files\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"BOUND\"\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"see attached\r\n" +
		"--BOUND\r\n" +
		"Content-Type: application/pdf; name=\"report.pdf\"\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		encoded + "\r\n" +
		"--BOUND--\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "see attached")
	require.Len(t, parsed.Attachments, 1)

	att := parsed.Attachments[0]
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, "attachment", att.Disposition)
	assert.Equal(t, int64(len(payload)), att.Size)
	assert.Equal(t, payload, att.Content)
}

func TestParseEmail_InlineImageWithContentID(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := base64.StdEncoding.EncodeToString(payload)

	raw := []byte("From: a@b.com\r\n" +
		"Content-Type: multipart/related; boundary=\"BOUND\"\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<img src=\"cid:logo123\">\r\n" +
		"--BOUND\r\n" +
		"Content-Type: image/png; name=\"logo.png\"\r\n" +
		"Content-Disposition: inline; filename=\"logo.png\"\r\n" +
		"Content-Id: <logo123>\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		encoded + "\r\n" +
		"--BOUND--\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	require.Len(t, parsed.Attachments, 1)

	att := parsed.Attachments[0]
	assert.Equal(t, "logo.png", att.Filename)
	assert.Equal(t, "inline", att.Disposition)
	// 角括号被剥除
	assert.Equal(t, "logo123", att.ContentID)
	assert.Equal(t, payload, att.Content)
}

func TestParseEmail_NestedMultipart(t *testing.T) {
	raw := []byte("From: a@b.com\r\n" +
		"Content-Type: multipart/mixed; boundary=\"OUTER\"\r\n" +
		"\r\n" +
		"--OUTER\r\n" +
		"Content-Type: multipart/alternative; boundary=\"INNER\"\r\n" +
		"\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"nested plain\r\n" +
		"--INNER\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<b>nested html</b>\r\n" +
		"--INNER--\r\n" +
		"--OUTER--\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "nested plain")
	assert.Contains(t, parsed.HTML, "nested html")
}

func TestParseEmail_MissingContentTypeFallsBackToText(t *testing.T) {
	raw := []byte("From: a@b.com\r\n" +
		"\r\n" +
		"just a body\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "just a body")
}

func TestParseEmail_Garbage(t *testing.T) {
	t.Run("无法解析的字节返回解析失败", func(t *testing.T) {
		_, err := ParseEmail([]byte("not an email at all"))

		assert.ErrorIs(t, err, domain.ErrParseFailed)
	})

	t.Run("multipart缺少boundary返回解析失败", func(t *testing.T) {
		raw := []byte("From: a@b.com\r\n" +
			"Content-Type: multipart/mixed\r\n" +
			"\r\n" +
			"body\r\n")

		_, err := ParseEmail(raw)

		assert.ErrorIs(t, err, domain.ErrParseFailed)
	})
}

func TestParseEmail_AttachmentWithoutFilename(t *testing.T) {
	raw := []byte(fmt.Sprintf("From: a@b.com\r\n"+
		"Content-Type: multipart/mixed; boundary=%q\r\n"+
		"\r\n"+
		"--BOUND\r\n"+
		"Content-Type: application/octet-stream\r\n"+
		"Content-Disposition: attachment\r\n"+
		"\r\n"+
		"%s\r\n"+
		"--BOUND--\r\n", "BOUND", "opaque bytes"))

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "unnamed", parsed.Attachments[0].Filename)
}

func TestParseEmail_GBKCharset(t *testing.T) {
	// "你好" 的 GBK 字节序列
	gbk := string([]byte{0xc4, 0xe3, 0xba, 0xc3})
	raw := []byte("From: a@b.com\r\n" +
		"Content-Type: text/plain; charset=gbk\r\n" +
		"\r\n" +
		gbk + "\r\n")

	parsed, err := ParseEmail(raw)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(parsed.Text, "你好"))
}
