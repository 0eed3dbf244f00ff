package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/features/streak/models"
)

type StreakService interface {
	GetProgress(ctx context.Context, userID int64) (*models.Progress, error)
	ListBadges(ctx context.Context, userID int64) ([]*models.Badge, error)
}

type StreakHandler struct {
	service StreakService
}

func NewStreakHandler(service StreakService) *StreakHandler {
	return &StreakHandler{service: service}
}

func (h *StreakHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/streaks/me", h.myProgress)
	router.GET("/badges/me", h.myBadges)
	router.GET("/users/:id/badges", h.userBadges)
}

// @Summary My streak
// @Description Current and longest streak with tier and milestone progress
// @Tags streaks
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.Progress
// @Router /streaks/me [get]
func (h *StreakHandler) myProgress(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	progress, err := h.service.GetProgress(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// @Summary My badges
// @Tags streaks
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Badge
// @Router /badges/me [get]
func (h *StreakHandler) myBadges(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	h.respondBadges(c, userID)
}

// @Summary User badges
// @Tags streaks
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Success 200 {array} models.Badge
// @Router /users/{id}/badges [get]
func (h *StreakHandler) userBadges(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errors.NewValidationError("id", "must be a number"))
		return
	}
	h.respondBadges(c, userID)
}

func (h *StreakHandler) respondBadges(c *gin.Context, userID int64) {
	badges, err := h.service.ListBadges(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, badges)
}
