package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/inphrosync/models"
)

type InphroSyncService interface {
	Today(ctx context.Context, userID int64) (*models.DayResult, error)
	Yesterday(ctx context.Context, userID int64) (*models.DayResult, error)
	GetDay(ctx context.Context, date string, userID int64) (*models.DayResult, error)
	Respond(ctx context.Context, questionID string, userID int64, option int) error
	CreateQuestion(ctx context.Context, input *models.CreateQuestionRequest) (*models.Question, error)
	SetActive(ctx context.Context, questionID string, active bool) (*models.Question, error)
}

type InphroSyncHandler struct {
	service InphroSyncService
}

func NewInphroSyncHandler(service InphroSyncService) *InphroSyncHandler {
	return &InphroSyncHandler{service: service}
}

func (h *InphroSyncHandler) RegisterRoutes(router *gin.RouterGroup, onboarded, adminOnly gin.HandlerFunc) {
	polls := router.Group("/inphrosync")
	{
		polls.GET("/today", h.today)
		polls.GET("/yesterday", h.yesterday)
		polls.GET("/days/:date", h.day)
		polls.POST("/questions/:id/responses", onboarded, h.respond)
	}

	admin := router.Group("/admin/inphrosync")
	admin.Use(adminOnly)
	{
		admin.POST("/questions", h.createQuestion)
		admin.PUT("/questions/:id/active", h.setActive)
	}
}

// @Summary Today's InphroSync
// @Description Today's questions with live results and the caller's answers
// @Tags inphrosync
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.DayResult
// @Router /inphrosync/today [get]
func (h *InphroSyncHandler) today(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	day, err := h.service.Today(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// @Summary Yesterday's InphroSync results
// @Tags inphrosync
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} models.DayResult
// @Router /inphrosync/yesterday [get]
func (h *InphroSyncHandler) yesterday(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	day, err := h.service.Yesterday(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// @Summary InphroSync results by date
// @Tags inphrosync
// @Produce json
// @Security TelegramInitData
// @Param date path string true "Date, YYYY-MM-DD"
// @Success 200 {object} models.DayResult
// @Failure 400 {object} models.ErrorResponse "Invalid date"
// @Router /inphrosync/days/{date} [get]
func (h *InphroSyncHandler) day(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	day, err := h.service.GetDay(c.Request.Context(), c.Param("date"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// @Summary Answer a question
// @Tags inphrosync
// @Accept json
// @Security TelegramInitData
// @Param id path string true "Question ID"
// @Param input body models.RespondRequest true "Option index"
// @Success 204
// @Failure 409 {object} models.ErrorResponse "Already answered or poll closed"
// @Router /inphrosync/questions/{id}/responses [post]
func (h *InphroSyncHandler) respond(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input models.RespondRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	if err := h.service.Respond(c.Request.Context(), c.Param("id"), userID, *input.Option); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Create InphroSync question
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.CreateQuestionRequest true "Question"
// @Success 201 {object} models.Question
// @Router /admin/inphrosync/questions [post]
func (h *InphroSyncHandler) createQuestion(c *gin.Context) {
	var input models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	q, err := h.service.CreateQuestion(c.Request.Context(), &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// @Summary Activate or deactivate InphroSync question
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Question ID"
// @Param input body models.SetActiveRequest true "Active flag"
// @Success 200 {object} models.Question
// @Router /admin/inphrosync/questions/{id}/active [put]
func (h *InphroSyncHandler) setActive(c *gin.Context) {
	var input models.SetActiveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	q, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *input.Active)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, q)
}
