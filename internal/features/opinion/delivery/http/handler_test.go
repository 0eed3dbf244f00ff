package http

import (
	"context"
	"encoding/json"
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
	"inphrone-backend/internal/features/opinion/models"
)

type mockOpinionService struct {
	mock.Mock
}

func (m *mockOpinionService) Create(ctx context.Context, userID int64, input *models.CreateOpinionRequest) (*models.Opinion, error) {
	args := m.Called(ctx, userID, input)
	o, _ := args.Get(0).(*models.Opinion)
	return o, args.Error(1)
}

func (m *mockOpinionService) Get(ctx context.Context, id string, viewer models.Viewer) (*models.Opinion, error) {
	args := m.Called(ctx, id, viewer)
	o, _ := args.Get(0).(*models.Opinion)
	return o, args.Error(1)
}

func (m *mockOpinionService) List(ctx context.Context, query *models.ListQuery, viewer models.Viewer) ([]*models.Opinion, error) {
	args := m.Called(ctx, query, viewer)
	opinions, _ := args.Get(0).([]*models.Opinion)
	return opinions, args.Error(1)
}

func (m *mockOpinionService) Upvote(ctx context.Context, id string, userID int64) (*models.Opinion, error) {
	args := m.Called(ctx, id, userID)
	o, _ := args.Get(0).(*models.Opinion)
	return o, args.Error(1)
}

func (m *mockOpinionService) Delete(ctx context.Context, id string, userID int64) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockOpinionService) Hide(ctx context.Context, id, reason string, actorID int64) (*models.Opinion, error) {
	args := m.Called(ctx, id, reason, actorID)
	o, _ := args.Get(0).(*models.Opinion)
	return o, args.Error(1)
}

func (m *mockOpinionService) Restore(ctx context.Context, id string, actorID int64) (*models.Opinion, error) {
	args := m.Called(ctx, id, actorID)
	o, _ := args.Get(0).(*models.Opinion)
	return o, args.Error(1)
}

func (m *mockOpinionService) Remove(ctx context.Context, id, reason string, actorID int64) error {
	return m.Called(ctx, id, reason, actorID).Error(0)
}

const testUserID = int64(42)

func setupRouter(t *testing.T, svc OpinionService, moderator bool) *gin.Engine {
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
	adminOnly := func(c *gin.Context) {
		if !moderator {
			_ = c.Error(errors.NewForbiddenError("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}

	h := NewOpinionHandler(svc, func(*gin.Context) bool { return moderator })
	h.RegisterRoutes(r.Group("/api/v1"), pass, adminOnly)
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

func errorCode(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body struct {
		Error struct {
			Code errors.ErrorCode `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestList_BindsQuery(t *testing.T) {
	svc := new(mockOpinionService)
	expected := &models.ListQuery{Category: models.CategoryFilm, Search: "thriller", Sort: models.SortPopular, Limit: 10}
	svc.On("List", mock.Anything, expected, models.Viewer{ID: testUserID}).
		Return([]*models.Opinion{{ID: "o1", Title: "Thrillers"}}, nil)

	w := perform(setupRouter(t, svc, false), http.MethodGet,
		"/api/v1/opinions?category=film&q=thriller&sort=popular&limit=10", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var opinions []models.Opinion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opinions))
	require.Len(t, opinions, 1)
	assert.Equal(t, "o1", opinions[0].ID)
	svc.AssertExpectations(t)
}

func TestList_RejectsBadQuery(t *testing.T) {
	svc := new(mockOpinionService)

	w := perform(setupRouter(t, svc, false), http.MethodGet, "/api/v1/opinions?sort=oldest", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_PassesModeratorFlag(t *testing.T) {
	svc := new(mockOpinionService)
	svc.On("Get", mock.Anything, "o1", models.Viewer{ID: testUserID, Moderator: true}).
		Return(&models.Opinion{ID: "o1", IsHidden: true}, nil)

	w := perform(setupRouter(t, svc, true), http.MethodGet, "/api/v1/opinions/o1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestGet_NotFound(t *testing.T) {
	svc := new(mockOpinionService)
	svc.On("Get", mock.Anything, "o1", mock.Anything).Return(nil, errors.NewOpinionNotFoundError("o1"))

	w := perform(setupRouter(t, svc, false), http.MethodGet, "/api/v1/opinions/o1", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrCodeOpinionNotFound, errorCode(t, w))
}

func TestCreate(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Create", mock.Anything, testUserID, mock.MatchedBy(func(in *models.CreateOpinionRequest) bool {
			return in.Category == models.CategorySeries && in.Title == "Shorter seasons" && in.WouldPay
		})).Return(&models.Opinion{ID: "o1", UserID: testUserID}, nil)

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/opinions",
			`{"category":"series","title":"Shorter seasons","content":"Eight episodes is plenty.","would_pay":true}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("BlankTitle", func(t *testing.T) {
		svc := new(mockOpinionService)

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/opinions",
			`{"category":"series","title":"   ","content":"Body"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errors.ErrCodeValidation, errorCode(t, w))
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUpvote(t *testing.T) {
	t.Run("Counted", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Upvote", mock.Anything, "o1", testUserID).
			Return(&models.Opinion{ID: "o1", Upvotes: 3, UpvotedByMe: true}, nil)

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/opinions/o1/upvote", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var o models.Opinion
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
		assert.Equal(t, 3, o.Upvotes)
	})

	t.Run("AlreadyUpvoted", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Upvote", mock.Anything, "o1", testUserID).
			Return(nil, errors.New(errors.ErrCodeAlreadyVoted, "Opinion already upvoted"))

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/opinions/o1/upvote", "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errors.ErrCodeAlreadyVoted, errorCode(t, w))
	})
}

func TestDelete(t *testing.T) {
	svc := new(mockOpinionService)
	svc.On("Delete", mock.Anything, "o1", testUserID).Return(nil)

	w := perform(setupRouter(t, svc, false), http.MethodDelete, "/api/v1/opinions/o1", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestModeration(t *testing.T) {
	t.Run("HideRequiresAdmin", func(t *testing.T) {
		svc := new(mockOpinionService)

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/admin/opinions/o1/hide", `{"reason":"spam"}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
		svc.AssertNotCalled(t, "Hide", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Hide", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Hide", mock.Anything, "o1", "spam", testUserID).
			Return(&models.Opinion{ID: "o1", IsHidden: true, ModerationReason: "spam"}, nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/admin/opinions/o1/hide", `{"reason":"spam"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Restore", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Restore", mock.Anything, "o1", testUserID).Return(&models.Opinion{ID: "o1"}, nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/admin/opinions/o1/restore", "")

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("RemoveNeedsReason", func(t *testing.T) {
		svc := new(mockOpinionService)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/admin/opinions/o1/remove", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Remove", func(t *testing.T) {
		svc := new(mockOpinionService)
		svc.On("Remove", mock.Anything, "o1", "abuse", testUserID).Return(nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/admin/opinions/o1/remove", `{"reason":"abuse"}`)

		assert.Equal(t, http.StatusNoContent, w.Code)
		svc.AssertExpectations(t)
	})
}
