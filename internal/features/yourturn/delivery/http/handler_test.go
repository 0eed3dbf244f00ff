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
	"inphrone-backend/internal/features/yourturn/models"
)

type mockSlotService struct {
	mock.Mock
}

func (m *mockSlotService) TodaySlots(ctx context.Context) ([]*models.Slot, error) {
	args := m.Called(ctx)
	slots, _ := args.Get(0).([]*models.Slot)
	return slots, args.Error(1)
}

func (m *mockSlotService) ListSlotsForDate(ctx context.Context, date string) ([]*models.Slot, error) {
	args := m.Called(ctx, date)
	slots, _ := args.Get(0).([]*models.Slot)
	return slots, args.Error(1)
}

func (m *mockSlotService) GetSlotDetails(ctx context.Context, slotID string, userID int64) (*models.SlotDetails, error) {
	args := m.Called(ctx, slotID, userID)
	details, _ := args.Get(0).(*models.SlotDetails)
	return details, args.Error(1)
}

func (m *mockSlotService) ObserveSlot(ctx context.Context, slotID string) (<-chan *models.Slot, error) {
	args := m.Called(ctx, slotID)
	ch, _ := args.Get(0).(<-chan *models.Slot)
	return ch, args.Error(1)
}

func (m *mockSlotService) ClaimSlot(ctx context.Context, slotID string, userID int64) (*models.ClaimResult, error) {
	args := m.Called(ctx, slotID, userID)
	result, _ := args.Get(0).(*models.ClaimResult)
	return result, args.Error(1)
}

func (m *mockSlotService) SubmitQuestion(ctx context.Context, slotID string, userID int64, text string, options []string) (*models.Question, error) {
	args := m.Called(ctx, slotID, userID, text, options)
	q, _ := args.Get(0).(*models.Question)
	return q, args.Error(1)
}

func (m *mockSlotService) GetQuestion(ctx context.Context, questionID string, userID int64) (*models.Question, error) {
	args := m.Called(ctx, questionID, userID)
	q, _ := args.Get(0).(*models.Question)
	return q, args.Error(1)
}

func (m *mockSlotService) Vote(ctx context.Context, questionID string, userID int64, option int) (*models.Question, error) {
	args := m.Called(ctx, questionID, userID, option)
	q, _ := args.Get(0).(*models.Question)
	return q, args.Error(1)
}

func (m *mockSlotService) ModerateQuestion(ctx context.Context, questionID string, actorID int64, reason string) error {
	return m.Called(ctx, questionID, actorID, reason).Error(0)
}

func (m *mockSlotService) ListHistory(ctx context.Context, limit, offset int) ([]*models.HistoryEntry, error) {
	args := m.Called(ctx, limit, offset)
	entries, _ := args.Get(0).([]*models.HistoryEntry)
	return entries, args.Error(1)
}

const testUserID = int64(42)

func setupRouter(t *testing.T, svc SlotService, onboarded bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.HandleErrors())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})

	onboardedOnly := func(c *gin.Context) {
		if !onboarded {
			_ = c.Error(errors.New(errors.ErrCodeOnboardingIncomplete, "Complete onboarding first"))
			c.Abort()
			return
		}
		c.Next()
	}
	adminOnly := func(c *gin.Context) { c.Next() }

	NewYourTurnHandler(svc).RegisterRoutes(r.Group("/api/v1"), onboardedOnly, adminOnly)
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

func TestClaimSlot(t *testing.T) {
	t.Run("Won", func(t *testing.T) {
		svc := new(mockSlotService)
		winner := testUserID
		svc.On("ClaimSlot", mock.Anything, "slot-1", testUserID).Return(&models.ClaimResult{
			Result: models.ClaimWon,
			Slot:   &models.Slot{ID: "slot-1", Status: models.SlotStatusWon, WinnerID: &winner, AttemptCount: 1},
		}, nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/claim", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var result models.ClaimResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, models.ClaimWon, result.Result)
		svc.AssertExpectations(t)
	})

	t.Run("SlotNotOpen", func(t *testing.T) {
		svc := new(mockSlotService)
		svc.On("ClaimSlot", mock.Anything, "slot-1", testUserID).
			Return(nil, errors.New(errors.ErrCodeSlotNotOpen, "Slot is not open yet"))

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/claim", "")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errors.ErrCodeSlotNotOpen, errorCode(t, w))
	})

	t.Run("OnboardingIncomplete", func(t *testing.T) {
		svc := new(mockSlotService)

		w := perform(setupRouter(t, svc, false), http.MethodPost, "/api/v1/yourturn/slots/slot-1/claim", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, errors.ErrCodeOnboardingIncomplete, errorCode(t, w))
		svc.AssertNotCalled(t, "ClaimSlot", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSubmitQuestion(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(mockSlotService)
		options := []string{"Sequel", "Reboot"}
		svc.On("SubmitQuestion", mock.Anything, "slot-1", testUserID, "Sequel or reboot?", options).
			Return(&models.Question{ID: "q-1", SlotID: "slot-1", Options: options, VoteCounts: []int64{0, 0}}, nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/question",
			`{"text":"Sequel or reboot?","options":["Sequel","Reboot"]}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("TooManyOptions", func(t *testing.T) {
		svc := new(mockSlotService)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/question",
			`{"text":"Pick","options":["a","b","c","d","e"]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errors.ErrCodeValidation, errorCode(t, w))
		svc.AssertNotCalled(t, "SubmitQuestion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NotWinner", func(t *testing.T) {
		svc := new(mockSlotService)
		svc.On("SubmitQuestion", mock.Anything, "slot-1", testUserID, mock.Anything, mock.Anything).
			Return(nil, errors.New(errors.ErrCodeNotWinner, "Only the slot winner can do this"))

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/question",
			`{"text":"Sequel or reboot?","options":["Sequel","Reboot"]}`)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Archived", func(t *testing.T) {
		svc := new(mockSlotService)
		svc.On("SubmitQuestion", mock.Anything, "slot-1", testUserID, mock.Anything, mock.Anything).
			Return(nil, errors.New(errors.ErrCodeSlotArchived, "Slot has been archived"))

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/slots/slot-1/question",
			`{"text":"Sequel or reboot?","options":["Sequel","Reboot"]}`)

		assert.Equal(t, http.StatusGone, w.Code)
	})
}

func TestVote(t *testing.T) {
	t.Run("MissingOption", func(t *testing.T) {
		svc := new(mockSlotService)
		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/questions/q-1/vote", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("FirstOptionIsValid", func(t *testing.T) {
		svc := new(mockSlotService)
		mine := 0
		svc.On("Vote", mock.Anything, "q-1", testUserID, 0).
			Return(&models.Question{ID: "q-1", VoteCounts: []int64{1, 0}, MyVote: &mine}, nil)

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/questions/q-1/vote", `{"option":0}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("AlreadyVoted", func(t *testing.T) {
		svc := new(mockSlotService)
		svc.On("Vote", mock.Anything, "q-1", testUserID, 1).
			Return(nil, errors.New(errors.ErrCodeAlreadyVoted, "You have already voted on this question"))

		w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/yourturn/questions/q-1/vote", `{"option":1}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, errors.ErrCodeAlreadyVoted, errorCode(t, w))
	})
}

func TestListSlotsAndHistory(t *testing.T) {
	svc := new(mockSlotService)
	svc.On("ListSlotsForDate", mock.Anything, "2025-03-15").
		Return([]*models.Slot{{ID: "a", SlotNumber: 1}, {ID: "b", SlotNumber: 2}}, nil)
	svc.On("ListHistory", mock.Anything, 10, 20).Return([]*models.HistoryEntry{}, nil)
	r := setupRouter(t, svc, true)

	w := perform(r, http.MethodGet, "/api/v1/yourturn/slots?date=2025-03-15", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var slots []models.Slot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slots))
	assert.Len(t, slots, 2)

	w = perform(r, http.MethodGet, "/api/v1/yourturn/history?limit=10&offset=20", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestGetSlot_NotFound(t *testing.T) {
	svc := new(mockSlotService)
	svc.On("GetSlotDetails", mock.Anything, "missing", testUserID).
		Return(nil, errors.NewSlotNotFoundError("missing"))

	w := perform(setupRouter(t, svc, true), http.MethodGet, "/api/v1/yourturn/slots/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrCodeSlotNotFound, errorCode(t, w))
}

type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

func TestObserveSlot_StreamsEvents(t *testing.T) {
	svc := new(mockSlotService)
	updates := make(chan *models.Slot, 2)
	updates <- &models.Slot{ID: "slot-1", Status: models.SlotStatusOpen}
	updates <- &models.Slot{ID: "slot-1", Status: models.SlotStatusWon, AttemptCount: 1}
	close(updates)
	svc.On("ObserveSlot", mock.Anything, "slot-1").Return((<-chan *models.Slot)(updates), nil)

	// gin's Stream needs a CloseNotifier
	w := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/yourturn/slots/slot-1/events", nil)
	setupRouter(t, svc, true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:slot"))
	assert.Contains(t, body, `"status":"won"`)
}

func TestModerateQuestion(t *testing.T) {
	svc := new(mockSlotService)
	svc.On("ModerateQuestion", mock.Anything, "q-1", testUserID, "Spam").Return(nil)

	w := perform(setupRouter(t, svc, true), http.MethodPost, "/api/v1/admin/yourturn/questions/q-1/moderate", `{"reason":"Spam"}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
