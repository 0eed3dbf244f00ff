package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type Coupon struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value" swaggertype:"string" example:"15.00"`
	DiscountType  DiscountType    `json:"discount_type"`
	TotalQuantity int             `json:"total_quantity"`
	Remaining     int             `json:"remaining"`
	ExpiresAt     time.Time       `json:"expires_at"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	ClaimedByMe   bool            `json:"claimed_by_me"`
}

// Available reports whether the coupon can still be claimed at now
func (c *Coupon) Available(now time.Time) bool {
	return c.IsActive && c.Remaining > 0 && now.Before(c.ExpiresAt)
}

// Claim is a coupon held by a user; UsedAt is set once redeemed
type Claim struct {
	CouponID  string     `json:"coupon_id"`
	UserID    int64      `json:"user_id"`
	ClaimedAt time.Time  `json:"claimed_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Coupon    *Coupon    `json:"coupon,omitempty"`
}

type CreateCouponRequest struct {
	Code          string          `json:"code" binding:"required,coupon_code" example:"FILM15"`
	Title         string          `json:"title" binding:"required,notblank,max=200" example:"15% off cinema tickets"`
	Description   string          `json:"description" binding:"omitempty,max=2000"`
	DiscountValue decimal.Decimal `json:"discount_value" swaggertype:"string" example:"15"`
	DiscountType  DiscountType    `json:"discount_type" binding:"required,oneof=percent fixed" example:"percent"`
	TotalQuantity int             `json:"total_quantity" binding:"required,min=1,max=1000000" example:"100"`
	ExpiresAt     time.Time       `json:"expires_at" binding:"required" example:"2025-12-31T23:59:59Z"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Coupon not found"`
}
