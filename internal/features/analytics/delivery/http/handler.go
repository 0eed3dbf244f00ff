package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/features/analytics/models"
)

type AnalyticsService interface {
	Overview(ctx context.Context) (*models.Overview, error)
}

type AnalyticsHandler struct {
	service AnalyticsService
}

func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func (h *AnalyticsHandler) RegisterRoutes(router *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	admin := router.Group("/admin/analytics")
	admin.Use(adminOnly)
	{
		admin.GET("/overview", h.overview)
	}
}

// @Summary Dashboard overview
// @Description Platform counters and today's slot states
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.Overview
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/analytics/overview [get]
func (h *AnalyticsHandler) overview(c *gin.Context) {
	out, err := h.service.Overview(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
