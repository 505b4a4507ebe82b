package domain

import "errors"

var (
	// ErrNotFound 表示邮件/邮箱/附件不存在或已过期。
	// 这是高频的正常控制流，不作为故障记录。
	ErrNotFound = errors.New("not found")

	// ErrAttachmentNotStored 表示附件元数据存在，但正文因超出
	// 大小上限从未存储。与 ErrNotFound 区分，便于客户端提示
	// "附件过大无法预览"而不是"附件丢失"。
	ErrAttachmentNotStored = errors.New("attachment not stored")

	// ErrInvalidRecipient 表示收件地址不含 @ 或形状校验失败，
	// 在任何存储写入之前拒绝。
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrParseFailed 表示原始邮件字节无法解析。向接入传输层
	// 如实上报（SMTP 临时拒绝，HTTP 422），不落任何半成品。
	ErrParseFailed = errors.New("parse failed")
)
