package smtp

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/domain"
	"github.com/Salojohn/temp-mail-api/internal/ingest"
	"github.com/Salojohn/temp-mail-api/internal/monitoring"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：只接受发往本系统域名的
// 邮件，外部域名一律 550 拒绝，不做任何中继。收件人邮箱无需
// 预先存在，投递时隐式创建（目录的惰性建键语义）。
type Backend struct {
	norm            *ingest.Normalizer
	metrics         *monitoring.Metrics
	log             *zap.Logger
	domainSuffix    string
	maxMessageBytes int64
	limiter         *ConnectionLimiter
}

// NewBackend 创建 SMTP Backend。
func NewBackend(norm *ingest.Normalizer, metrics *monitoring.Metrics, cfg *config.Config, log *zap.Logger) *Backend {
	return &Backend{
		norm:            norm,
		metrics:         metrics,
		log:             log,
		domainSuffix:    cfg.Mailbox.Domain,
		maxMessageBytes: cfg.SMTP.MaxMessageBytes,
		limiter:         NewConnectionLimiter(cfg.SMTP.MaxSessions, cfg.SMTP.SessionsPerSec),
	}
}

// NewSession 创建新的 SMTP 会话；超出并发或速率上限时 421 拒绝。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = domain.NormalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 只接受发往配置域名的、格式合法的收件人。域名不匹配返回 550
// 拒绝中继；本地部分非法返回 501。邮箱是否已创建不在此检查，
// 投递即建箱。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := domain.NormalizeAddress(to)

	_, address, err := domain.ExtractLocalPart(addr)
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	at := strings.Index(address, "@")
	if !strings.EqualFold(address[at+1:], s.backend.domainSuffix) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	s.recipients = append(s.recipients, address)
	return nil
}

// Data 处理邮件内容，为每个收件人各落一条记录。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, s.backend.maxMessageBytes))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, rcpt := range s.recipients {
		rec, err := s.backend.norm.IngestSMTP(ctx, s.fromAddress, rcpt, rawBytes)
		if err != nil {
			// 解析失败也按临时错误上报，守规矩的发送方会重试
			if errors.Is(err, domain.ErrParseFailed) {
				return &gosmtp.SMTPError{
					Code:         451,
					EnhancedCode: gosmtp.EnhancedCode{4, 6, 0},
					Message:      "message content could not be parsed, try again later",
				}
			}
			s.backend.log.Error("smtp delivery failed",
				zap.String("recipient", rcpt),
				zap.Error(err),
			)
			return &gosmtp.SMTPError{
				Code:         451,
				EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
				Message:      "temporary delivery failure, try again later",
			}
		}

		s.backend.metrics.RecordMessageIngested("smtp")
		for _, att := range rec.Attachments {
			if att.Stored {
				s.backend.metrics.RecordAttachmentStored()
			} else {
				s.backend.metrics.RecordAttachmentSkipped()
			}
		}

		s.backend.log.Info("smtp message delivered",
			zap.String("recipient", rcpt),
			zap.String("id", rec.ID),
		)
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束，释放连接额度。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}

// NewServer 用配置装配 go-smtp 服务器。
func NewServer(backend *Backend, cfg *config.Config) *gosmtp.Server {
	srv := gosmtp.NewServer(backend)
	srv.Addr = cfg.SMTP.BindAddr
	srv.Domain = cfg.SMTP.Domain
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
	srv.MaxRecipients = 50
	return srv
}
