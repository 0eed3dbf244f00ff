package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/coupon/models"
)

type CouponService interface {
	ListAvailable(ctx context.Context, userID int64) ([]*models.Coupon, error)
	Claim(ctx context.Context, couponID string, userID int64) (*models.Claim, error)
	MarkUsed(ctx context.Context, couponID string, userID int64) (*models.Claim, error)
	ListMine(ctx context.Context, userID int64) ([]*models.Claim, error)
	Create(ctx context.Context, input *models.CreateCouponRequest) (*models.Coupon, error)
	Deactivate(ctx context.Context, couponID string) (*models.Coupon, error)
}

type CouponHandler struct {
	service CouponService
}

func NewCouponHandler(service CouponService) *CouponHandler {
	return &CouponHandler{service: service}
}

func (h *CouponHandler) RegisterRoutes(router *gin.RouterGroup, onboarded, adminOnly gin.HandlerFunc) {
	coupons := router.Group("/coupons")
	{
		coupons.GET("", h.listAvailable)
		coupons.GET("/mine", h.listMine)
		coupons.POST("/:id/claim", onboarded, h.claim)
		coupons.POST("/:id/use", onboarded, h.markUsed)
	}

	admin := router.Group("/admin/coupons")
	admin.Use(adminOnly)
	{
		admin.POST("", h.create)
		admin.POST("/:id/deactivate", h.deactivate)
	}
}

// @Summary Available coupons
// @Tags coupons
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Coupon
// @Router /coupons [get]
func (h *CouponHandler) listAvailable(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	coupons, err := h.service.ListAvailable(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, coupons)
}

// @Summary My coupons
// @Tags coupons
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} models.Claim
// @Router /coupons/mine [get]
func (h *CouponHandler) listMine(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	claims, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

// @Summary Claim coupon
// @Tags coupons
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Coupon ID"
// @Success 201 {object} models.Claim
// @Failure 409 {object} models.ErrorResponse "Already claimed"
// @Failure 410 {object} models.ErrorResponse "Out of stock"
// @Router /coupons/{id}/claim [post]
func (h *CouponHandler) claim(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	claim, err := h.service.Claim(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, claim)
}

// @Summary Mark coupon used
// @Tags coupons
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Coupon ID"
// @Success 200 {object} models.Claim
// @Router /coupons/{id}/use [post]
func (h *CouponHandler) markUsed(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	claim, err := h.service.MarkUsed(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// @Summary Create coupon
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body models.CreateCouponRequest true "Coupon"
// @Success 201 {object} models.Coupon
// @Failure 409 {object} models.ErrorResponse "Code already exists"
// @Router /admin/coupons [post]
func (h *CouponHandler) create(c *gin.Context) {
	var input models.CreateCouponRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(validation.FromBinding(err))
		return
	}

	coupon, err := h.service.Create(c.Request.Context(), &input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

// @Summary Deactivate coupon
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path string true "Coupon ID"
// @Success 200 {object} models.Coupon
// @Router /admin/coupons/{id}/deactivate [post]
func (h *CouponHandler) deactivate(c *gin.Context) {
	coupon, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, coupon)
}
