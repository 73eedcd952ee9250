package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuxishi/service-status-dashboard/internal/model"
)

// Source is what the handlers read from. Every method returns a record that
// already carries its own error status, so no handler fails on an upstream
// outage.
type Source interface {
	Balance(ctx context.Context) model.BalanceInfo
	Database(ctx context.Context) model.DatabaseInfo
	Quota(ctx context.Context) model.QuotaInfo
	System(ctx context.Context) model.SystemInfo
	Collect(ctx context.Context) model.AllServicesResponse
}

type Handler struct {
	source Source
}

func New(source Source) *Handler {
	return &Handler{source: source}
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.source.Collect(c.Request.Context()))
}

func (h *Handler) GetBalance(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Balance(c.Request.Context()))
}

func (h *Handler) GetDatabase(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Database(c.Request.Context()))
}

func (h *Handler) GetQuota(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Quota(c.Request.Context()))
}

func (h *Handler) GetSystem(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.System(c.Request.Context()))
}

func (h *Handler) GetAll(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Collect(c.Request.Context()))
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
