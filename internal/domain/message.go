package domain

import "time"

// AttachmentMeta 表示一封邮件内单个附件的元数据。
//
// 附件正文单独存储；Stored 标记正文是否实际落盘
// （超出大小上限的附件只保留元数据，正文被丢弃）。
type AttachmentMeta struct {
	Index       int    `json:"index"`               // 附件在邮件内的序号，从 0 开始
	Filename    string `json:"filename"`            // 文件名
	ContentType string `json:"contentType"`         // 声明的 MIME 类型
	Size        int64  `json:"size"`                // 原始字节数
	Disposition string `json:"disposition"`         // "attachment" 或 "inline"
	ContentID   string `json:"contentId,omitempty"` // 内联图片引用的 Content-ID
	Stored      bool   `json:"stored"`              // 正文是否已存储
}

// MessageRecord 表示一封已归一化的邮件记录。
//
// 记录在创建后不可变，仅由存储层的 TTL 过期销毁。
// 记录的 TTL 与其所属邮箱目录的 TTL 相互独立：目录里残留的
// 邮件 ID 可能指向已过期的记录，读路径按"跳过"处理。
type MessageRecord struct {
	ID          string            `json:"id"`
	Mailbox     string            `json:"mailbox"`       // 收件邮箱的本地部分（小写）
	To          string            `json:"to"`            // 归一化后的完整收件地址（小写）
	From        string            `json:"from"`          // 发件人展示字符串
	Subject     string            `json:"subject"`
	Text        string            `json:"text,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Raw         []byte            `json:"raw,omitempty"` // 原始邮件字节，用于调试/重新解析
	ReceivedAt  time.Time         `json:"receivedAt"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []AttachmentMeta  `json:"attachments,omitempty"`
}

// MessageSummary 表示收件箱列表里的一条摘要。
type MessageSummary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// MessageDetail 表示单封邮件的完整投影。
type MessageDetail struct {
	ID          string            `json:"id"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	BodyPlain   string            `json:"bodyPlain"`
	BodyHTML    string            `json:"bodyHtml"`
	ReceivedAt  time.Time         `json:"receivedAt"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []AttachmentMeta  `json:"attachments"`
}

// AttachmentFile 表示附件下载所需的字节与元信息。
type AttachmentFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
