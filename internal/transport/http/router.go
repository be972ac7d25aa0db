package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/duo-ledger/internal/capture"
	"github.com/richardliu001/duo-ledger/internal/config"
	"github.com/richardliu001/duo-ledger/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.LedgerService, disp *capture.Dispatcher, cfg *config.Config, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterHandlers(r, svc, disp, cfg.Allowed, log)
	return r
}
