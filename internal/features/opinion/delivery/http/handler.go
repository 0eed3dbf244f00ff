package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/opinion/models"
)

type OpinionService interface {
	Create(ctx context.Context, userID int64, input *models.CreateOpinionRequest) (*models.Opinion, error)
	Get(ctx context.Context, id string, viewer models.Viewer) (*models.Opinion, error)
	List(ctx context.Context, query *models.ListQuery, viewer models.Viewer) ([]*models.Opinion, error)
	Upvote(ctx context.Context, id string, userID int64) (*models.Opinion, error)
	Delete(ctx context.Context, id string, userID int64) error
	Hide(ctx context.Context, id, reason string, actorID int64) (*models.Opinion, error)
	Restore(ctx context.Context, id string, actorID int64) (*models.Opinion, error)
	Remove(ctx context.Context, id, reason string, actorID int64) error
}

type OpinionHandler struct {
	service     OpinionService
	isModerator func(c *gin.Context) bool
}

// NewOpinionHandler takes the moderator check used to reveal hidden opinions
func NewOpinionHandler(service OpinionService, isModerator func(c *gin.Context) bool) *OpinionHandler {
	if isModerator == nil {
		isModerator = func(*gin.Context) bool { return false }
	}
	return &OpinionHandler{service: service, isModerator: isModerator}
}

func (h *OpinionHandler) RegisterRoutes(router *gin.RouterGroup, onboarded, adminOnly gin.HandlerFunc) {
	opinions := router.Group("/opinions")
	{
		opinions.GET("", h.list)
		opinions.GET("/:id", h.get)
		opinions.POST("", onboarded, h.create)
		opinions.POST("/:id/upvote", onboarded, h.upvote)
		opinions.DELETE("/:id", onboarded, h.delete)
	}

	admin := router.Group("/admin/opinions")
	admin.Use(adminOnly)
	{
		admin.POST("/:id/hide", h.hide)
		admin.POST("/:id/restore", h.restore)
		admin.POST("/:id/remove", h.remove)
	}
}

func (h *OpinionHandler) viewer(c *gin.Context) models.Viewer {
	userID, _ := middleware.CurrentUserID(c)
	return models.Viewer{ID: userID, Moderator: h.isModerator(c)}
}

// @Summary List opinions
// @Description Opinion feed filtered by category, genre, author or text
// @Tags opinions
// @Produce json
// @Security TelegramInitData
// @Param category query string false "Category" Enums(film, series, music, gaming, ott, tv, youtube, apps)
// @Param genre query string false "Genre"
// @Param author_id query int false "Author"
// @Param q query string false "Search in title and content"
// @Param sort query string false "Sort" Enums(recent, popular)
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Opinion
// @Router /opinions [get]
func (h *OpinionHandler) list(c *gin.Context) {
	var query models.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	opinions, err := h.service.List(c.Request.Context(), &query, h.viewer(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, opinions)
}

// @Summary Get opinion
// @Tags opinions
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Success 200 {object} models.Opinion
// @Failure 404 {object} models.ErrorResponse "Opinion not found"
// @Router /opinions/{id} [get]
func (h *OpinionHandler) get(c *gin.Context) {
	o, err := h.service.Get(c.Request.Context(), c.Param("id"), h.viewer(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Share an opinion
// @Tags opinions
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.CreateOpinionRequest true "Opinion"
// @Success 201 {object} models.Opinion
// @Failure 400 {object} models.ErrorResponse "Invalid input"
// @Router /opinions [post]
func (h *OpinionHandler) create(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	var input models.CreateOpinionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	o, err := h.service.Create(c.Request.Context(), userID, &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Upvote an opinion
// @Tags opinions
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Success 200 {object} models.Opinion
// @Failure 403 {object} models.ErrorResponse "Own opinion"
// @Failure 409 {object} models.ErrorResponse "Already upvoted"
// @Router /opinions/{id}/upvote [post]
func (h *OpinionHandler) upvote(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	o, err := h.service.Upvote(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Delete own opinion
// @Tags opinions
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse "Opinion not found"
// @Router /opinions/{id} [delete]
func (h *OpinionHandler) delete(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Hide opinion
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Param input body models.ModerationRequest true "Reason"
// @Success 200 {object} models.Opinion
// @Router /admin/opinions/{id}/hide [post]
func (h *OpinionHandler) hide(c *gin.Context) {
	actorID, _ := middleware.CurrentUserID(c)

	var input models.ModerationRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	o, err := h.service.Hide(c.Request.Context(), c.Param("id"), input.Reason, actorID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Restore hidden opinion
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Success 200 {object} models.Opinion
// @Router /admin/opinions/{id}/restore [post]
func (h *OpinionHandler) restore(c *gin.Context) {
	actorID, _ := middleware.CurrentUserID(c)
	o, err := h.service.Restore(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Remove opinion
// @Tags admin
// @Accept json
// @Security TelegramInitData
// @Param id path string true "Opinion ID"
// @Param input body models.ModerationRequest true "Reason"
// @Success 204
// @Router /admin/opinions/{id}/remove [post]
func (h *OpinionHandler) remove(c *gin.Context) {
	actorID, _ := middleware.CurrentUserID(c)

	var input models.ModerationRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	if err := h.service.Remove(c.Request.Context(), c.Param("id"), input.Reason, actorID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
