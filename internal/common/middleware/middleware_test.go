package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"inphrone-backend/internal/common/config"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/user/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeValidation, http.StatusBadRequest},
		{errors.ErrCodeBadRequest, http.StatusBadRequest},
		{errors.ErrCodeOpinionNotFound, http.StatusNotFound},
		{errors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{errors.ErrCodeNotWinner, http.StatusForbidden},
		{errors.ErrCodeUserBanned, http.StatusForbidden},
		{errors.ErrCodeOnboardingIncomplete, http.StatusForbidden},
		{errors.ErrCodeSlotNotOpen, http.StatusConflict},
		{errors.ErrCodeAlreadyVoted, http.StatusConflict},
		{errors.ErrCodeAlreadyClaimed, http.StatusConflict},
		{errors.ErrCodeSlotArchived, http.StatusGone},
		{errors.ErrCodeOutOfStock, http.StatusGone},
		{errors.ErrCodeTooManyRequests, http.StatusTooManyRequests},
		{errors.ErrCodeCacheError, http.StatusServiceUnavailable},
		{errors.ErrCodeExternalAPI, http.StatusBadGateway},
		{errors.ErrCodeDatabaseError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(errors.New(tt.code, "x")))
		})
	}
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(), HandleErrors())
	r.GET("/", handlers...)
	return r
}

type errorBody struct {
	Success   bool            `json:"success"`
	Error     errors.AppError `json:"error"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleErrors_RendersAppError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errors.NewSlotNotFoundError("slot-1"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	body := decode(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, errors.ErrCodeSlotNotFound, body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestHandleErrors_WrapsPlainError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decode(t, w).Error.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleErrors_LeavesWrittenResponse(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(fmt.Errorf("late"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestErrorHandler_RecoversPanic(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		panic("nil map")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, decode(t, w).Error.Code)
}

func TestTelegramInitData_Rejects(t *testing.T) {
	tests := map[string]string{
		"Missing":  "",
		"Unsigned": "query_id=AAH&user=%7B%22id%22%3A1%7D&auth_date=1700000000&hash=deadbeef",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			r := newEngine(TelegramInitData("123:abc", time.Hour), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if raw != "" {
				req.Header.Set(InitDataHeader, raw)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

type stubProvisioner struct {
	profile *models.User
}

func (s stubProvisioner) GetOrCreate(_ context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	p := *s.profile
	p.ID = telegramID
	return &p, nil
}

func withTelegramUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(TelegramUserKey, initdata.User{ID: id, FirstName: "Asha"})
		c.Set(UserIDKey, id)
		c.Next()
	}
}

func TestAutoCreateUser(t *testing.T) {
	t.Run("ActiveProfile", func(t *testing.T) {
		var seen *models.User
		r := newEngine(withTelegramUser(5), AutoCreateUser(stubProvisioner{&models.User{Status: models.StatusActive}}),
			func(c *gin.Context) {
				seen, _ = CurrentProfile(c)
				c.Status(http.StatusOK)
			})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(5), seen.ID)
	})

	t.Run("Banned", func(t *testing.T) {
		r := newEngine(withTelegramUser(5), AutoCreateUser(stubProvisioner{&models.User{Status: models.StatusBanned}}),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, errors.ErrCodeUserBanned, decode(t, w).Error.Code)
	})
}

func withProfile(p *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, p.ID)
		c.Set(ProfileKey, p)
		c.Next()
	}
}

func TestRequireOnboarded(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	w := httptest.NewRecorder()
	newEngine(withProfile(&models.User{ID: 1}), RequireOnboarded(), ok).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.ErrCodeOnboardingIncomplete, decode(t, w).Error.Code)

	w = httptest.NewRecorder()
	newEngine(withProfile(&models.User{ID: 1, OnboardingCompleted: true}), RequireOnboarded(), ok).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telegram.AdminIDs = []int64{100}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	tests := []struct {
		name    string
		profile *models.User
		want    int
	}{
		{"ConfiguredAdmin", &models.User{ID: 100, Role: models.RoleAudience}, http.StatusOK},
		{"AdminRole", &models.User{ID: 7, Role: models.RoleAdmin}, http.StatusOK},
		{"Audience", &models.User{ID: 7, Role: models.RoleAudience}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newEngine(withProfile(tt.profile), RequireAdmin(cfg), ok).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := httptest.NewRecorder()
	newEngine(RequireAdmin(cfg), ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
