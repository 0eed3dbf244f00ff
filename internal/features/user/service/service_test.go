package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/common/errors"
	notifmodels "inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/user/models"
	"inphrone-backend/internal/features/user/repository"
)

type memoryUsers struct {
	users   map[int64]*models.User
	creates int
	updates int
	reads   int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[int64]*models.User)}
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.creates++
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.reads++
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) Update(_ context.Context, u *models.User) error {
	m.updates++
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) UpdateStatus(_ context.Context, id int64, status string) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Status = status
	return nil
}

func (m *memoryUsers) CompleteOnboarding(_ context.Context, id int64, input *models.OnboardingRequest) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = input.Role
	u.Email = input.Email
	u.Country = input.Country
	u.AgeGroup = input.AgeGroup
	u.OnboardingCompleted = true
	return nil
}

func (m *memoryUsers) ListWithEmail(context.Context, int, int) ([]*models.User, error) {
	return nil, nil
}

func (m *memoryUsers) Count(context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

type memoryCache struct {
	profiles    map[int64]*models.User
	invalidated []int64
}

func (c *memoryCache) Get(_ context.Context, id int64) (*models.User, error) {
	return c.profiles[id], nil
}

func (c *memoryCache) Set(_ context.Context, u *models.User) error {
	cp := *u
	c.profiles[u.ID] = &cp
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id int64) error {
	c.invalidated = append(c.invalidated, id)
	delete(c.profiles, id)
	return nil
}

type recordingMailer struct {
	queued []notifmodels.EmailRequest
	err    error
}

func (m *recordingMailer) Enqueue(_ context.Context, req notifmodels.EmailRequest) error {
	if m.err != nil {
		return m.err
	}
	m.queued = append(m.queued, req)
	return nil
}

func newTestService() (*userService, *memoryUsers, *memoryCache, *recordingMailer) {
	repo := newMemoryUsers()
	cache := &memoryCache{profiles: make(map[int64]*models.User)}
	mailer := &recordingMailer{}
	svc := NewUserService(repo, cache, mailer).(*userService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, cache, mailer
}

func TestGetOrCreate_ProvisionsAudienceProfile(t *testing.T) {
	svc, repo, cache, _ := newTestService()

	u, err := svc.GetOrCreate(context.Background(), 77, "asha", "Asha", "K")
	require.NoError(t, err)

	assert.Equal(t, models.RoleAudience, u.Role)
	assert.Equal(t, models.StatusActive, u.Status)
	assert.False(t, u.OnboardingCompleted)
	assert.Equal(t, 1, repo.creates)
	assert.Contains(t, cache.profiles, int64(77))
}

func TestGetOrCreate_ServesCachedProfile(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)
	reads := repo.reads

	_, err = svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)
	assert.Equal(t, reads, repo.reads)
}

func TestGetOrCreate_RefreshesIdentity(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)

	u, err := svc.GetOrCreate(ctx, 77, "asha_new", "Asha", "K")
	require.NoError(t, err)
	assert.Equal(t, "asha_new", u.Username)
	assert.Equal(t, 1, repo.updates)
	assert.Equal(t, 1, repo.creates)
}

func TestCompleteOnboarding_QueuesWelcome(t *testing.T) {
	svc, _, cache, mailer := newTestService()
	ctx := context.Background()
	_, err := svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)

	u, err := svc.CompleteOnboarding(ctx, 77, &models.OnboardingRequest{Role: models.RoleCreator, Email: "asha@example.com"})
	require.NoError(t, err)

	assert.True(t, u.OnboardingCompleted)
	assert.Equal(t, models.RoleCreator, u.Role)
	assert.Equal(t, []int64{77}, cache.invalidated)
	require.Len(t, mailer.queued, 1)
	assert.Equal(t, notifmodels.EmailWelcome, mailer.queued[0].Type)
	assert.Equal(t, "asha@example.com", mailer.queued[0].To)
	assert.Equal(t, "creator", mailer.queued[0].Data["role"])
}

func TestCompleteOnboarding_WithoutEmailOrMailerFailure(t *testing.T) {
	svc, _, _, mailer := newTestService()
	ctx := context.Background()
	_, err := svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)

	_, err = svc.CompleteOnboarding(ctx, 77, &models.OnboardingRequest{Role: models.RoleAudience})
	require.NoError(t, err)
	assert.Empty(t, mailer.queued)

	mailer.err = fmt.Errorf("stream down")
	_, err = svc.CompleteOnboarding(ctx, 77, &models.OnboardingRequest{Role: models.RoleAudience, Email: "a@example.com"})
	assert.NoError(t, err)
}

func TestCompleteOnboarding_UnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CompleteOnboarding(context.Background(), 5, &models.OnboardingRequest{Role: models.RoleAudience})
	assert.True(t, errors.HasCode(err, errors.ErrCodeUserNotFound))
}

func TestUpdateStatus(t *testing.T) {
	svc, _, cache, _ := newTestService()
	ctx := context.Background()
	_, err := svc.GetOrCreate(ctx, 77, "asha", "Asha", "K")
	require.NoError(t, err)

	u, err := svc.UpdateStatus(ctx, 77, models.StatusBanned)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, u.Status)
	assert.NotContains(t, cache.profiles, int64(77))

	_, err = svc.UpdateStatus(ctx, 77, "suspended")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}
