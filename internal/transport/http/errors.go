package httptransport

import (
	"github.com/Salojohn/temp-mail-api/internal/domain"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrNotFound:            "资源不存在或已过期",
	domain.ErrAttachmentNotStored: "附件超出存储上限，正文未保存",
	domain.ErrInvalidRecipient:    "收件人地址格式无效",
	domain.ErrParseFailed:         "邮件内容无法解析",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	MsgMailboxCreateFailed = "创建邮箱失败"
	MsgMailboxNotFound     = "邮箱不存在或已过期"
	MsgMailboxDeleteFailed = "删除邮箱失败"

	MsgMessageNotFound = "邮件不存在或已过期"
	MsgIngestFailed    = "接收邮件失败"

	MsgAttachmentNotFound = "附件不存在"
	MsgInvalidIndex       = "附件序号格式无效"

	MsgInternalError = "服务器内部错误，请稍后重试"
)
