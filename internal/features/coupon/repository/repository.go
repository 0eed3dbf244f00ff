package repository

import (
	"context"
	"errors"
	"time"

	"inphrone-backend/internal/features/coupon/models"
)

var (
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCouponExpired    = errors.New("coupon expired or inactive")
	ErrOutOfStock       = errors.New("coupon out of stock")
	ErrAlreadyClaimed   = errors.New("coupon already claimed")
	ErrDuplicateCode    = errors.New("coupon code already exists")
	ErrClaimNotFound    = errors.New("coupon claim not found")
	ErrClaimAlreadyUsed = errors.New("coupon claim already used")
)

type CouponRepository interface {
	Create(ctx context.Context, c *models.Coupon) error
	Get(ctx context.Context, id string) (*models.Coupon, error)
	// ListAvailable returns active, unexpired coupons with stock left
	ListAvailable(ctx context.Context, userID int64, now time.Time) ([]*models.Coupon, error)
	// Claim decrements remaining and records the claim in one transaction
	Claim(ctx context.Context, couponID string, userID int64, now time.Time) (*models.Claim, error)
	MarkUsed(ctx context.Context, couponID string, userID int64, at time.Time) (*models.Claim, error)
	ListClaims(ctx context.Context, userID int64) ([]*models.Claim, error)
	Deactivate(ctx context.Context, id string) (*models.Coupon, error)
	CountClaims(ctx context.Context) (int64, error)
}
