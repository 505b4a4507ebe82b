package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Salojohn/temp-mail-api/internal/config"
	"github.com/Salojohn/temp-mail-api/internal/health"
	"github.com/Salojohn/temp-mail-api/internal/ingest"
	"github.com/Salojohn/temp-mail-api/internal/logger"
	"github.com/Salojohn/temp-mail-api/internal/mailbox"
	"github.com/Salojohn/temp-mail-api/internal/monitoring"
	"github.com/Salojohn/temp-mail-api/internal/smtp"
	"github.com/Salojohn/temp-mail-api/internal/storage"
	"github.com/Salojohn/temp-mail-api/internal/storage/memory"
	"github.com/Salojohn/temp-mail-api/internal/storage/redis"
	httptransport "github.com/Salojohn/temp-mail-api/internal/transport/http"
	"github.com/Salojohn/temp-mail-api/internal/websocket"
)

// main 启动同时包含 HTTP API 与 SMTP 的临时邮箱服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting temp-mail server",
		zap.String("domain", cfg.Mailbox.Domain),
		zap.Duration("inbox_ttl", cfg.Mailbox.InboxTTL),
		zap.Int("max_messages", cfg.Mailbox.MaxMessages),
	)

	// KV 存储：优先 Redis，开发模式下连不上时回退到内存实现
	var kv storage.KV
	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		if !cfg.Log.Development {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		log.Warn("redis unavailable, falling back to in-memory store",
			zap.Error(err),
		)
		kv = memory.NewKV()
	} else {
		kv = redisClient
	}
	defer kv.Close()

	// 核心引擎装配
	dir := mailbox.NewDirectory(kv, cfg.Mailbox.InboxTTL, cfg.Mailbox.MaxMessages, cfg.Storage.Timeout, log)
	recs := mailbox.NewRecords(kv, cfg.Message.TTL, cfg.Storage.Timeout, log)
	svc := mailbox.NewService(dir, recs, cfg, log)

	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)
	norm := ingest.NewNormalizer(dir, recs, cfg, wsHub, log)

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(kv, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		MailboxSvc:    svc,
		Normalizer:    norm,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		WebSocketHub:  wsHub,
		Logger:        log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	smtpBackend := smtp.NewBackend(norm, metrics, cfg, log)
	smtpServer := smtp.NewServer(smtpBackend, cfg)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 存储保活 goroutine：周期性 Ping，失败只告警不致命
	group.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(groupCtx, cfg.Storage.Timeout)
				if err := kv.Ping(pingCtx); err != nil {
					log.Warn("store keep-alive ping failed", zap.Error(err))
				}
				cancel()
			}
		}
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
