package httptransport

import (
	"errors"
	"mime"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/mailbox"
	"github.com/Salojohn/temp-mail-api/internal/monitoring"
)

// MailboxHandler 邮箱与邮件读取 API 处理器
type MailboxHandler struct {
	svc     *mailbox.Service
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器
func NewMailboxHandler(svc *mailbox.Service, metrics *monitoring.Metrics, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{
		svc:     svc,
		metrics: metrics,
		log:     log,
	}
}

// createMailboxRequest 创建邮箱请求体，local 留空则随机生成
type createMailboxRequest struct {
	Local string `json:"local"`
}

// inboxResponse 收件箱列表响应
type inboxResponse struct {
	Messages  []domain.MessageSummary `json:"messages"`
	ExpiresIn int                     `json:"expiresInSeconds"`
}

// CreateMailbox 处理 POST /v1/mailboxes
func (h *MailboxHandler) CreateMailbox(c *gin.Context) {
	var req createMailboxRequest
	// 请求体可以完全省略
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidJSON)
			return
		}
	}

	box, err := h.svc.Create(c.Request.Context(), req.Local)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRecipient) {
			BadRequest(c, GetErrorMessage(domain.ErrInvalidRecipient))
			return
		}
		h.log.Error("create mailbox failed", zap.Error(err))
		InternalError(c, MsgMailboxCreateFailed)
		return
	}

	h.metrics.RecordMailboxCreated()
	Created(c, box)
}

// ListMessages 处理 GET /v1/mailboxes/:local/messages
//
// 收件箱不存在或已过期时返回空列表而非 404，轮询客户端无需
// 区分这两种情况。
func (h *MailboxHandler) ListMessages(c *gin.Context) {
	local := c.Param("local")

	messages := h.svc.ListInbox(c.Request.Context(), local)

	expiresIn := 0
	if ttl, err := h.svc.Expires(c.Request.Context(), local); err == nil && ttl > 0 {
		expiresIn = int(ttl.Seconds())
	}

	Success(c, inboxResponse{
		Messages:  messages,
		ExpiresIn: expiresIn,
	})
}

// DeleteMailbox 处理 DELETE /v1/mailboxes/:local
func (h *MailboxHandler) DeleteMailbox(c *gin.Context) {
	local := c.Param("local")

	if err := h.svc.Delete(c.Request.Context(), local); err != nil {
		h.log.Error("delete mailbox failed",
			zap.String("local", local),
			zap.Error(err),
		)
		InternalError(c, MsgMailboxDeleteFailed)
		return
	}

	h.metrics.RecordMailboxDeleted()
	NoContent(c)
}

// GetMessage 处理 GET /v1/messages/:id
func (h *MailboxHandler) GetMessage(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.svc.GetDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		h.log.Error("get message failed", zap.String("id", id), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, detail)
}

// GetAttachment 处理 GET /v1/messages/:id/attachments/:index
//
// 正文已存储的附件以原始字节返回；元数据存在但正文因超限未
// 存储时返回 410，与 404 区分。
func (h *MailboxHandler) GetAttachment(c *gin.Context) {
	id := c.Param("id")

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, MsgInvalidIndex)
		return
	}

	file, err := h.svc.GetAttachment(c.Request.Context(), id, index)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAttachmentNotStored):
			Gone(c, GetErrorMessage(domain.ErrAttachmentNotStored))
		case errors.Is(err, domain.ErrNotFound):
			NotFound(c, MsgAttachmentNotFound)
		default:
			h.log.Error("get attachment failed",
				zap.String("id", id),
				zap.Int("index", index),
				zap.Error(err),
			)
			InternalError(c, MsgInternalError)
		}
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": file.Filename,
	})
	c.Header("Content-Disposition", disposition)
	c.Data(200, contentType, file.Content)
}
