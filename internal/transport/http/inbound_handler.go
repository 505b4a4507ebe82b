package httptransport

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/ingest"
	"github.com/Salojohn/temp-mail-api/internal/monitoring"
)

// InboundHandler 来信接收 API 处理器，每个端点对应一个渠道
type InboundHandler struct {
	norm    *ingest.Normalizer
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewInboundHandler 创建来信处理器
func NewInboundHandler(norm *ingest.Normalizer, metrics *monitoring.Metrics, log *zap.Logger) *InboundHandler {
	return &InboundHandler{
		norm:    norm,
		metrics: metrics,
		log:     log,
	}
}

// ingestedResponse 收信成功响应
type ingestedResponse struct {
	ID      string `json:"id"`
	Mailbox string `json:"mailbox"`
}

// respond 统一处理各渠道的落库结果。
func (h *InboundHandler) respond(c *gin.Context, channel string, rec *domain.MessageRecord, err error) {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRecipient):
			BadRequest(c, GetErrorMessage(domain.ErrInvalidRecipient))
		case errors.Is(err, domain.ErrParseFailed):
			UnprocessableEntity(c, GetErrorMessage(domain.ErrParseFailed))
		default:
			h.log.Error("ingest failed",
				zap.String("channel", channel),
				zap.Error(err),
			)
			InternalError(c, MsgIngestFailed)
		}
		return
	}

	h.metrics.RecordMessageIngested(channel)
	for _, att := range rec.Attachments {
		if att.Stored {
			h.metrics.RecordAttachmentStored()
		} else {
			h.metrics.RecordAttachmentSkipped()
		}
	}

	Created(c, ingestedResponse{
		ID:      rec.ID,
		Mailbox: rec.Mailbox,
	})
}

// IngestRaw 处理 POST /v1/inbound/raw
//
// 请求体是原始 RFC 5322 字节。收件人优先取 to 查询参数，
// 缺省时回退到信头 To。
func (h *InboundHandler) IngestRaw(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if len(raw) == 0 {
		BadRequest(c, MsgRequestBodyEmpty)
		return
	}

	rec, err := h.norm.IngestRaw(c.Request.Context(), c.Query("to"), raw)
	h.respond(c, "raw", rec, err)
}

// IngestJSON 处理 POST /v1/inbound/json
func (h *InboundHandler) IngestJSON(c *gin.Context) {
	var in ingest.JSONInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	rec, err := h.norm.IngestJSON(c.Request.Context(), in)
	h.respond(c, "json", rec, err)
}

// IngestMultipart 处理 POST /v1/inbound/multipart
//
// 原始邮件走 message（或 email）文件字段，整封解析；文本字段
// to/from/subject 作为覆盖项。没有原始邮件时按结构化字段
// text/html 组装，附件走 attachments 文件字段，可以多个。
func (h *InboundHandler) IngestMultipart(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	in := ingest.MultipartInput{
		To:      c.PostForm("to"),
		From:    c.PostForm("from"),
		Subject: c.PostForm("subject"),
		Text:    c.PostForm("text"),
		HTML:    c.PostForm("html"),
	}

	rawParts := form.File["message"]
	if len(rawParts) == 0 {
		rawParts = form.File["email"]
	}
	if len(rawParts) > 0 {
		f, err := rawParts[0].Open()
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		in.Raw = raw
	}

	for _, header := range form.File["attachments"] {
		f, err := header.Open()
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		in.Attachments = append(in.Attachments, &ingest.ParsedAttachment{
			Filename:    header.Filename,
			ContentType: contentType,
			Size:        int64(len(content)),
			Disposition: "attachment",
			Content:     content,
		})
	}

	rec, err := h.norm.IngestMultipart(c.Request.Context(), in)
	h.respond(c, "multipart", rec, err)
}

// IngestTest 处理 POST /v1/inbound/test
//
// 载荷既可以是 JSON 请求体，也可以全部走查询参数，方便 curl
// 一行手测。
func (h *InboundHandler) IngestTest(c *gin.Context) {
	var in ingest.TestInput
	if c.Query("to") != "" {
		in = ingest.TestInput{
			To:      c.Query("to"),
			Subject: c.Query("subject"),
			Text:    c.Query("text"),
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	rec, err := h.norm.IngestTest(c.Request.Context(), in)
	h.respond(c, "test", rec, err)
}
