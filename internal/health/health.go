package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/storage"
)

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	kv     storage.KV
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器。
//
// 存活探针只看进程自身（协程数上限），就绪探针要求 KV 存储
// 可达：存储失联时实例仍然存活但不应接流。
func NewHealthChecker(kv storage.KV, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		kv:     kv,
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(500))

	hc.health.AddReadinessCheck("kv-store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := hc.kv.Ping(ctx); err != nil {
			hc.logger.Warn("kv readiness check failed", zap.Error(err))
			return err
		}
		return nil
	})

	return hc
}

// LiveEndpoint 存活探针处理器
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针处理器
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}
