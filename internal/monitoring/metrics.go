package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 指标注册在私有 Registry 上而非全局默认注册表，多实例（尤其
// 是测试里）互不冲突。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter

	// 邮件指标
	MessagesIngested   *prometheus.CounterVec
	AttachmentsStored  prometheus.Counter
	AttachmentsSkipped prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted",
			},
		),

		MessagesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_messages_ingested_total",
				Help: "Total number of messages ingested, by channel",
			},
			[]string{"channel"},
		),

		AttachmentsStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_attachments_stored_total",
				Help: "Total number of attachment payloads stored",
			},
		),

		AttachmentsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_attachments_skipped_total",
				Help: "Total number of attachment payloads skipped by the size ceiling",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordMessageIngested 按渠道记录收信
func (m *Metrics) RecordMessageIngested(channel string) {
	m.MessagesIngested.WithLabelValues(channel).Inc()
}

// RecordAttachmentStored 记录附件落库
func (m *Metrics) RecordAttachmentStored() {
	m.AttachmentsStored.Inc()
}

// RecordAttachmentSkipped 记录附件因超限被跳过
func (m *Metrics) RecordAttachmentSkipped() {
	m.AttachmentsSkipped.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 /metrics 端点的处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
