package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuxishi/service-status-dashboard/internal/logger"
	"github.com/yuxishi/service-status-dashboard/internal/metrics"
	"github.com/yuxishi/service-status-dashboard/internal/middleware"
	"github.com/yuxishi/service-status-dashboard/web"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the page, the JSON API and the operational endpoints.
// Only the routes that reach upstream providers sit behind the rate limit.
func NewRouter(h *Handler, m *metrics.Metrics, log *zap.Logger, cfg RouterConfig) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(logger.Recovery(log), logger.Middleware(log), middleware.Metrics(m))
	r.SetHTMLTemplate(tmpl)

	r.StaticFS("/static", http.FS(web.Static()))
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	limited := r.Group("/", middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	limited.GET("/", h.Index)

	api := limited.Group("/api")
	{
		api.GET("/balance", h.GetBalance)
		api.GET("/database", h.GetDatabase)
		api.GET("/dadata", h.GetQuota)
		api.GET("/system", h.GetSystem)
		api.GET("/all", h.GetAll)
		api.GET("/export/json", h.ExportJSON)
		api.GET("/export/html", h.ExportHTML)
	}

	return r, nil
}
