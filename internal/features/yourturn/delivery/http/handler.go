package http

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/yourturn/models"
)

type SlotService interface {
	TodaySlots(ctx context.Context) ([]*models.Slot, error)
	ListSlotsForDate(ctx context.Context, date string) ([]*models.Slot, error)
	GetSlotDetails(ctx context.Context, slotID string, userID int64) (*models.SlotDetails, error)
	ObserveSlot(ctx context.Context, slotID string) (<-chan *models.Slot, error)
	ClaimSlot(ctx context.Context, slotID string, userID int64) (*models.ClaimResult, error)
	SubmitQuestion(ctx context.Context, slotID string, userID int64, text string, options []string) (*models.Question, error)
	GetQuestion(ctx context.Context, questionID string, userID int64) (*models.Question, error)
	Vote(ctx context.Context, questionID string, userID int64, option int) (*models.Question, error)
	ModerateQuestion(ctx context.Context, questionID string, actorID int64, reason string) error
	ListHistory(ctx context.Context, limit, offset int) ([]*models.HistoryEntry, error)
}

type YourTurnHandler struct {
	service SlotService
}

func NewYourTurnHandler(service SlotService) *YourTurnHandler {
	return &YourTurnHandler{service: service}
}

func (h *YourTurnHandler) RegisterRoutes(router *gin.RouterGroup, onboarded, adminOnly gin.HandlerFunc) {
	yt := router.Group("/yourturn")
	{
		yt.GET("/slots/today", h.todaySlots)
		yt.GET("/slots", h.listSlots)
		yt.GET("/slots/:id", h.getSlot)
		yt.GET("/slots/:id/events", h.observeSlot)
		yt.GET("/questions/:id", h.getQuestion)
		yt.GET("/history", h.listHistory)

		yt.POST("/slots/:id/claim", onboarded, h.claimSlot)
		yt.POST("/slots/:id/question", onboarded, h.submitQuestion)
		yt.POST("/questions/:id/vote", onboarded, h.vote)
	}

	admin := router.Group("/admin/yourturn")
	admin.Use(adminOnly)
	{
		admin.POST("/questions/:id/moderate", h.moderateQuestion)
	}
}

// @Summary Today's slots
// @Description Lists the three Your Turn slots of the current day
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Slot
// @Router /yourturn/slots/today [get]
func (h *YourTurnHandler) todaySlots(c *gin.Context) {
	slots, err := h.service.TodaySlots(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// @Summary Slots by date
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Param date query string true "Date, YYYY-MM-DD"
// @Success 200 {array} models.Slot
// @Failure 400 {object} models.ErrorResponse "Invalid date"
// @Router /yourturn/slots [get]
func (h *YourTurnHandler) listSlots(c *gin.Context) {
	slots, err := h.service.ListSlotsForDate(c.Request.Context(), c.Query("date"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// @Summary Get slot
// @Description Returns the slot and, once won, the winner's question
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Slot ID"
// @Success 200 {object} models.SlotDetails
// @Failure 404 {object} models.ErrorResponse "Slot not found"
// @Router /yourturn/slots/{id} [get]
func (h *YourTurnHandler) getSlot(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	details, err := h.service.GetSlotDetails(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// @Summary Observe slot
// @Description Server-Sent Events stream of slot state. Each "slot" event carries the full slot.
// @Tags yourturn
// @Produce text/event-stream
// @Security TelegramInitData
// @Param id path string true "Slot ID"
// @Success 200 {object} models.Slot
// @Failure 404 {object} models.ErrorResponse "Slot not found"
// @Router /yourturn/slots/{id}/events [get]
func (h *YourTurnHandler) observeSlot(c *gin.Context) {
	updates, err := h.service.ObserveSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		slot, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("slot", slot)
		return true
	})
}

// @Summary Claim slot
// @Description One claim per call, never retried. result is won, already_taken or expired.
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Slot ID"
// @Success 200 {object} models.ClaimResult
// @Failure 403 {object} models.ErrorResponse "Onboarding incomplete"
// @Failure 404 {object} models.ErrorResponse "Slot not found"
// @Failure 409 {object} models.ErrorResponse "Slot not open yet"
// @Router /yourturn/slots/{id}/claim [post]
func (h *YourTurnHandler) claimSlot(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.ClaimSlot(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Submit question
// @Description The slot winner publishes a poll with 2 to 4 options
// @Tags yourturn
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Slot ID"
// @Param input body models.SubmitQuestionRequest true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse "Invalid question"
// @Failure 403 {object} models.ErrorResponse "Not the winner"
// @Failure 410 {object} models.ErrorResponse "Slot archived"
// @Router /yourturn/slots/{id}/question [post]
func (h *YourTurnHandler) submitQuestion(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input models.SubmitQuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	q, err := h.service.SubmitQuestion(c.Request.Context(), c.Param("id"), userID, input.Text, input.Options)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// @Summary Get question
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} models.ErrorResponse "Question not found"
// @Router /yourturn/questions/{id} [get]
func (h *YourTurnHandler) getQuestion(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	q, err := h.service.GetQuestion(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// @Summary Vote
// @Tags yourturn
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Question ID"
// @Param input body models.VoteRequest true "Option index"
// @Success 200 {object} models.Question
// @Failure 409 {object} models.ErrorResponse "Already voted"
// @Router /yourturn/questions/{id}/vote [post]
func (h *YourTurnHandler) vote(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	q, err := h.service.Vote(c.Request.Context(), c.Param("id"), userID, *input.Option)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// @Summary Slot history
// @Tags yourturn
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Page size" default(30)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.HistoryEntry
// @Router /yourturn/history [get]
func (h *YourTurnHandler) listHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.service.ListHistory(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// @Summary Remove question
// @Description Soft-deletes a winner's question with a reason (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Question ID"
// @Param input body models.ModerateRequest true "Reason"
// @Success 204
// @Failure 403 {object} models.ErrorResponse "Not an admin"
// @Failure 404 {object} models.ErrorResponse "Question not found"
// @Router /admin/yourturn/questions/{id}/moderate [post]
func (h *YourTurnHandler) moderateQuestion(c *gin.Context) {
	actorID, _ := middleware.CurrentUserID(c)

	var input models.ModerateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	if err := h.service.ModerateQuestion(c.Request.Context(), c.Param("id"), actorID, input.Reason); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
