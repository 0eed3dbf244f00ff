package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/notification/models"
)

type NotificationService interface {
	SendEmail(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error)
	Broadcast(ctx context.Context, input *models.BroadcastRequest) (*models.BroadcastResult, error)
	Subscribe(ctx context.Context, userID int64, input *models.SubscribeRequest) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID int64, endpoint string) error
	ListSubscriptions(ctx context.Context, userID int64) ([]*models.PushSubscription, error)
	ShouldPrompt(ctx context.Context, userID int64) (*models.PromptState, error)
	DismissPrompt(ctx context.Context, userID int64, mode models.DismissMode) error
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup, onboarded, adminOnly gin.HandlerFunc) {
	push := router.Group("/push")
	{
		push.GET("/subscriptions", h.listSubscriptions)
		push.POST("/subscriptions", onboarded, h.subscribe)
		push.DELETE("/subscriptions", h.unsubscribe)
		push.GET("/prompt", h.prompt)
		push.POST("/prompt/dismiss", h.dismissPrompt)
	}

	admin := router.Group("/admin/notifications")
	admin.Use(adminOnly)
	{
		admin.POST("/email", h.sendEmail)
		admin.POST("/broadcast", h.broadcast)
	}
}

// @Summary My push subscriptions
// @Tags notifications
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.PushSubscription
// @Router /push/subscriptions [get]
func (h *NotificationHandler) listSubscriptions(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	subs, err := h.service.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// @Summary Subscribe to push notifications
// @Tags notifications
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.SubscribeRequest true "Browser subscription"
// @Success 201 {object} models.PushSubscription
// @Failure 400 {object} models.ErrorResponse
// @Router /push/subscriptions [post]
func (h *NotificationHandler) subscribe(c *gin.Context) {
	var input models.SubscribeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	sub, err := h.service.Subscribe(c.Request.Context(), userID, &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// @Summary Unsubscribe from push notifications
// @Tags notifications
// @Accept json
// @Security TelegramInitData
// @Param input body models.UnsubscribeRequest true "Endpoint"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /push/subscriptions [delete]
func (h *NotificationHandler) unsubscribe(c *gin.Context) {
	var input models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.service.Unsubscribe(c.Request.Context(), userID, input.Endpoint); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Should the push prompt be shown
// @Tags notifications
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.PromptState
// @Router /push/prompt [get]
func (h *NotificationHandler) prompt(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	state, err := h.service.ShouldPrompt(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// @Summary Dismiss the push prompt
// @Tags notifications
// @Accept json
// @Security TelegramInitData
// @Param input body models.DismissRequest true "Dismissal"
// @Success 204
// @Router /push/prompt/dismiss [post]
func (h *NotificationHandler) dismissPrompt(c *gin.Context) {
	var input models.DismissRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if err := h.service.DismissPrompt(c.Request.Context(), userID, input.Mode); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Send a transactional email
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.EmailRequest true "Email"
// @Success 200 {object} models.EmailResult
// @Failure 502 {object} models.ErrorResponse "Provider failure"
// @Router /admin/notifications/email [post]
func (h *NotificationHandler) sendEmail(c *gin.Context) {
	var input models.EmailRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	result, err := h.service.SendEmail(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Broadcast an email to every profile
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.BroadcastRequest true "Message"
// @Success 202 {object} models.BroadcastResult
// @Router /admin/notifications/broadcast [post]
func (h *NotificationHandler) broadcast(c *gin.Context) {
	var input models.BroadcastRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	result, err := h.service.Broadcast(c.Request.Context(), &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}
