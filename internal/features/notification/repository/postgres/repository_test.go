package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/notification/repository"
)

func newMock(t *testing.T) (*postgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &postgresRepository{db: db}, mock
}

func TestSave_Upserts(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	sub := &models.PushSubscription{UserID: 7, Endpoint: "https://push.example/1", P256dh: "key", Auth: "auth", CreatedAt: now}
	mock.ExpectExec("ON CONFLICT \\(user_id, endpoint\\) DO UPDATE").
		WithArgs(int64(7), "https://push.example/1", "key", "auth", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), sub))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("DELETE FROM push_subscriptions").WithArgs(int64(7), "https://push.example/1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 7, "https://push.example/1")
	assert.ErrorIs(t, err, repository.ErrSubscriptionNotFound)
}

func TestListByUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("FROM push_subscriptions").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "endpoint", "p256dh", "auth", "created_at"}).
			AddRow(int64(7), "https://push.example/1", "key", "auth", now))

	subs, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/1", subs[0].Endpoint)
}

func TestHasSubscription(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasSubscription(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, ok)
}
