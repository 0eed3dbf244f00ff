package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/user/mapper"
	"inphrone-backend/internal/features/user/models"
	"inphrone-backend/internal/features/user/service"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	users := router.Group("/users")
	{
		users.GET("/me", h.getMe)
		users.POST("/me/onboarding", h.completeOnboarding)
		users.GET("/:id", h.getUser)
	}

	admin := router.Group("/admin/users")
	admin.Use(adminOnly)
	{
		admin.PUT("/:id/status", h.updateUserStatus)
	}
}

// @Summary Get current user
// @Description Returns the profile of the caller, provisioned from Telegram init data
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.User "User data"
// @Failure 401 {object} models.ErrorResponse "Missing init data"
// @Failure 403 {object} models.ErrorResponse "User is banned"
// @Router /users/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	profile, ok := middleware.CurrentProfile(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("profile required"))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Summary Complete onboarding
// @Description Stores role and contact details and sends the welcome email
// @Tags users
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.OnboardingRequest true "Onboarding data"
// @Success 200 {object} models.User "Updated profile"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /users/me/onboarding [post]
func (h *UserHandler) completeOnboarding(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input models.OnboardingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	user, err := h.service.CompleteOnboarding(c.Request.Context(), userID, &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Get user by ID
// @Description Get public profile information by ID
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse "User data"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errors.NewValidationError("id", "must be an integer"))
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}

// @Summary Update user status
// @Description Ban or unban a user (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "User ID"
// @Param status body models.StatusUpdate true "New status"
// @Success 200 {object} models.UserResponse "Updated user data"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 403 {object} models.ErrorResponse "Forbidden - not an admin"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/users/{id}/status [put]
func (h *UserHandler) updateUserStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errors.NewValidationError("id", "must be an integer"))
		return
	}

	var input models.StatusUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	user, err := h.service.UpdateStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToUserResponse(user))
}
