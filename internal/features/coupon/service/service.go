package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/coupon/models"
	"inphrone-backend/internal/features/coupon/repository"
)

var maxPercent = decimal.NewFromInt(100)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo repository.CouponRepository
	now  func() time.Time
}

func NewService(repo repository.CouponRepository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListAvailable(ctx context.Context, userID int64) ([]*models.Coupon, error) {
	coupons, err := s.repo.ListAvailable(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, errors.NewDatabaseError("list coupons", err)
	}
	return coupons, nil
}

// Claim reserves one unit for the user. Each user claims a coupon at most once.
func (s *Service) Claim(ctx context.Context, couponID string, userID int64) (*models.Claim, error) {
	claim, err := s.repo.Claim(ctx, couponID, userID, s.now().UTC())
	if err != nil {
		return nil, mapError(err, couponID)
	}
	logger.Info().
		Str("coupon_id", couponID).
		Int64("user_id", userID).
		Int("remaining", claim.Coupon.Remaining).
		Msg("Coupon claimed")
	return claim, nil
}

func (s *Service) MarkUsed(ctx context.Context, couponID string, userID int64) (*models.Claim, error) {
	claim, err := s.repo.MarkUsed(ctx, couponID, userID, s.now().UTC())
	if err != nil {
		return nil, mapError(err, couponID)
	}
	return claim, nil
}

func (s *Service) ListMine(ctx context.Context, userID int64) ([]*models.Claim, error) {
	claims, err := s.repo.ListClaims(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list claims", err)
	}
	return claims, nil
}

func (s *Service) Create(ctx context.Context, input *models.CreateCouponRequest) (*models.Coupon, error) {
	now := s.now().UTC()
	if !input.DiscountValue.IsPositive() {
		return nil, errors.NewValidationError("discount_value", "must be positive")
	}
	if input.DiscountType == models.DiscountPercent && input.DiscountValue.GreaterThan(maxPercent) {
		return nil, errors.NewValidationError("discount_value", "percent discount cannot exceed 100")
	}
	if !input.ExpiresAt.After(now) {
		return nil, errors.NewValidationError("expires_at", "must be in the future")
	}

	c := &models.Coupon{
		ID:            uuid.NewString(),
		Code:          strings.ToUpper(strings.TrimSpace(input.Code)),
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		DiscountValue: input.DiscountValue.Round(2),
		DiscountType:  input.DiscountType,
		TotalQuantity: input.TotalQuantity,
		Remaining:     input.TotalQuantity,
		ExpiresAt:     input.ExpiresAt.UTC(),
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if stderrors.Is(err, repository.ErrDuplicateCode) {
			return nil, errors.NewConflictError("coupon", "code already exists")
		}
		return nil, errors.NewDatabaseError("create coupon", err)
	}

	logger.Info().Str("coupon_id", c.ID).Str("code", c.Code).Int("quantity", c.TotalQuantity).Msg("Coupon created")
	return c, nil
}

func (s *Service) Deactivate(ctx context.Context, couponID string) (*models.Coupon, error) {
	c, err := s.repo.Deactivate(ctx, couponID)
	if err != nil {
		return nil, mapError(err, couponID)
	}
	logger.Info().Str("coupon_id", couponID).Msg("Coupon deactivated")
	return c, nil
}

func (s *Service) CountClaims(ctx context.Context) (int64, error) {
	n, err := s.repo.CountClaims(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError("count claims", err)
	}
	return n, nil
}

func mapError(err error, couponID string) error {
	switch {
	case stderrors.Is(err, repository.ErrCouponNotFound):
		return errors.NewCouponNotFoundError(couponID)
	case stderrors.Is(err, repository.ErrAlreadyClaimed):
		return errors.New(errors.ErrCodeAlreadyClaimed, "Coupon already claimed").WithDetail("coupon_id", couponID)
	case stderrors.Is(err, repository.ErrOutOfStock):
		return errors.New(errors.ErrCodeOutOfStock, "Coupon is out of stock").WithDetail("coupon_id", couponID)
	case stderrors.Is(err, repository.ErrCouponExpired):
		return errors.NewConflictError("coupon", "expired or inactive")
	case stderrors.Is(err, repository.ErrClaimNotFound):
		return errors.NewNotFoundError("coupon claim", couponID)
	case stderrors.Is(err, repository.ErrClaimAlreadyUsed):
		return errors.NewConflictError("coupon claim", "already used")
	default:
		return errors.NewDatabaseError("coupon", err)
	}
}
