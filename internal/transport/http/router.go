package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/health"
	"github.com/Salojohn/temp-mail-api/internal/ingest"
	"github.com/Salojohn/temp-mail-api/internal/mailbox"
	"github.com/Salojohn/temp-mail-api/internal/middleware"
	"github.com/Salojohn/temp-mail-api/internal/monitoring"
	"github.com/Salojohn/temp-mail-api/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	MailboxSvc    *mailbox.Service
	Normalizer    *ingest.Normalizer
	Metrics       *monitoring.Metrics
	HealthChecker *health.HealthChecker
	WebSocketHub  *websocket.Hub
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	mailboxHandler := NewMailboxHandler(deps.MailboxSvc, deps.Metrics, deps.Logger)
	inboundHandler := NewInboundHandler(deps.Normalizer, deps.Metrics, deps.Logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	v1 := router.Group("/v1")
	{
		mailboxes := v1.Group("/mailboxes")
		mailboxes.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
		{
			mailboxes.POST("", mailboxHandler.CreateMailbox)
			mailboxes.GET("/:local/messages", mailboxHandler.ListMessages)
			mailboxes.DELETE("/:local", mailboxHandler.DeleteMailbox)
			if deps.WebSocketHub != nil {
				mailboxes.GET("/:local/ws", websocket.HandleWebSocket(deps.WebSocketHub))
			}
		}

		messages := v1.Group("/messages")
		{
			messages.GET("/:id", mailboxHandler.GetMessage)
			messages.GET("/:id/attachments/:index", mailboxHandler.GetAttachment)
		}

		// 来信端点承载完整邮件，限额与 SMTP 一致
		inbound := v1.Group("/inbound")
		inbound.Use(middleware.BodySizeLimit(deps.Config.SMTP.MaxMessageBytes))
		{
			inbound.POST("/raw", inboundHandler.IngestRaw)
			inbound.POST("/json", inboundHandler.IngestJSON)
			inbound.POST("/multipart", inboundHandler.IngestMultipart)
			inbound.POST("/test", inboundHandler.IngestTest)
		}
	}

	return router
}
