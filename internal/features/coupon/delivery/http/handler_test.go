package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/middleware"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/coupon/models"
)

type mockCouponService struct {
	mock.Mock
}

func (m *mockCouponService) ListAvailable(ctx context.Context, userID int64) ([]*models.Coupon, error) {
	args := m.Called(ctx, userID)
	coupons, _ := args.Get(0).([]*models.Coupon)
	return coupons, args.Error(1)
}

func (m *mockCouponService) Claim(ctx context.Context, couponID string, userID int64) (*models.Claim, error) {
	args := m.Called(ctx, couponID, userID)
	claim, _ := args.Get(0).(*models.Claim)
	return claim, args.Error(1)
}

func (m *mockCouponService) MarkUsed(ctx context.Context, couponID string, userID int64) (*models.Claim, error) {
	args := m.Called(ctx, couponID, userID)
	claim, _ := args.Get(0).(*models.Claim)
	return claim, args.Error(1)
}

func (m *mockCouponService) ListMine(ctx context.Context, userID int64) ([]*models.Claim, error) {
	args := m.Called(ctx, userID)
	claims, _ := args.Get(0).([]*models.Claim)
	return claims, args.Error(1)
}

func (m *mockCouponService) Create(ctx context.Context, input *models.CreateCouponRequest) (*models.Coupon, error) {
	args := m.Called(ctx, input)
	c, _ := args.Get(0).(*models.Coupon)
	return c, args.Error(1)
}

func (m *mockCouponService) Deactivate(ctx context.Context, couponID string) (*models.Coupon, error) {
	args := m.Called(ctx, couponID)
	c, _ := args.Get(0).(*models.Coupon)
	return c, args.Error(1)
}

const testUserID = int64(42)

func setupRouter(t *testing.T, svc CouponService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})
	pass := func(c *gin.Context) { c.Next() }
	NewCouponHandler(svc).RegisterRoutes(r.Group("/api/v1"), pass, pass)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClaim(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(mockCouponService)
		svc.On("Claim", mock.Anything, "c1", testUserID).
			Return(&models.Claim{CouponID: "c1", UserID: testUserID}, nil)

		w := perform(setupRouter(t, svc), http.MethodPost, "/api/v1/coupons/c1/claim", "")

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("OutOfStock", func(t *testing.T) {
		svc := new(mockCouponService)
		svc.On("Claim", mock.Anything, "c1", testUserID).
			Return(nil, errors.New(errors.ErrCodeOutOfStock, "Coupon is out of stock"))

		w := perform(setupRouter(t, svc), http.MethodPost, "/api/v1/coupons/c1/claim", "")

		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("AlreadyClaimed", func(t *testing.T) {
		svc := new(mockCouponService)
		svc.On("Claim", mock.Anything, "c1", testUserID).
			Return(nil, errors.New(errors.ErrCodeAlreadyClaimed, "Coupon already claimed"))

		w := perform(setupRouter(t, svc), http.MethodPost, "/api/v1/coupons/c1/claim", "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCreate(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(mockCouponService)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(in *models.CreateCouponRequest) bool {
			return in.Code == "FILM15" && in.DiscountValue.String() == "15.5" && in.TotalQuantity == 100
		})).Return(&models.Coupon{ID: "c1", Code: "FILM15"}, nil)

		w := perform(setupRouter(t, svc), http.MethodPost, "/api/v1/admin/coupons",
			`{"code":"FILM15","title":"Cinema","discount_value":"15.5","discount_type":"percent","total_quantity":100,"expires_at":"2030-01-01T00:00:00Z"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("BadCode", func(t *testing.T) {
		svc := new(mockCouponService)

		w := perform(setupRouter(t, svc), http.MethodPost, "/api/v1/admin/coupons",
			`{"code":"x","title":"Cinema","discount_value":"15","discount_type":"percent","total_quantity":1,"expires_at":"2030-01-01T00:00:00Z"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestListMine(t *testing.T) {
	svc := new(mockCouponService)
	svc.On("ListMine", mock.Anything, testUserID).Return([]*models.Claim{{CouponID: "c1"}}, nil)

	w := perform(setupRouter(t, svc), http.MethodGet, "/api/v1/coupons/mine", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coupon_id":"c1"`)
}
