package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/features/opinion/models"
	"inphrone-backend/internal/features/opinion/repository"
)

var opinionColumns = []string{
	"id", "user_id", "author", "category", "title", "content", "genre", "would_pay", "upvotes",
	"is_hidden", "moderation_reason", "moderated_by", "moderated_at", "deleted_at",
	"created_at", "updated_at", "exists",
}

func newMock(t *testing.T) (*postgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &postgresRepository{db: db}, mock
}

func opinionRow(now time.Time, upvotes int, upvoted bool) *sqlmock.Rows {
	return sqlmock.NewRows(opinionColumns).AddRow(
		"o1", int64(5), "Asha", "film", "Title", "Body", "thriller", true, upvotes,
		false, "", nil, nil, nil, now, now, upvoted)
}

func TestGet(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("FROM opinions o").WithArgs(int64(9), "o1").WillReturnRows(opinionRow(now, 3, true))

	o, err := repo.Get(context.Background(), "o1", 9)
	require.NoError(t, err)
	assert.Equal(t, "Asha", o.AuthorName)
	assert.Equal(t, models.CategoryFilm, o.Category)
	assert.True(t, o.UpvotedByMe)
	assert.Nil(t, o.ModeratedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM opinions o").WillReturnRows(sqlmock.NewRows(opinionColumns))

	_, err := repo.Get(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, repository.ErrOpinionNotFound)
}

func TestList_BuildsFilters(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`NOT o.is_hidden AND o.category = \$2 AND \(o.title ILIKE \$3 OR o.content ILIKE \$3\) ORDER BY o.upvotes DESC`).
		WithArgs(int64(9), models.CategoryFilm, `%50\%%`, 100, 0).
		WillReturnRows(opinionRow(now, 3, false))

	opinions, err := repo.List(context.Background(), models.Filter{
		Category: models.CategoryFilm,
		Search:   " 50% ",
		Sort:     models.SortPopular,
		Limit:    500,
		ViewerID: 9,
	})
	require.NoError(t, err)
	assert.Len(t, opinions, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_DefaultsForModerators(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`WHERE o.deleted_at IS NULL ORDER BY o.created_at DESC`).
		WithArgs(int64(0), defaultLimit, 0).
		WillReturnRows(sqlmock.NewRows(opinionColumns))

	opinions, err := repo.List(context.Background(), models.Filter{IncludeHidden: true, Offset: -3})
	require.NoError(t, err)
	assert.Empty(t, opinions)
	assert.NotNil(t, opinions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpvote(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Counted", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO opinion_upvotes").WithArgs("o1", int64(9), now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE opinions SET upvotes = upvotes \\+ 1").WithArgs("o1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectQuery("FROM opinions o").WithArgs(int64(9), "o1").WillReturnRows(opinionRow(now, 4, true))

		o, err := repo.Upvote(ctx, "o1", 9, now)
		require.NoError(t, err)
		assert.Equal(t, 4, o.Upvotes)
		assert.True(t, o.UpvotedByMe)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	cases := []struct {
		name string
		row  []driver.Value
		err  error
	}{
		{"AlreadyUpvoted", []driver.Value{int64(5), true, true}, repository.ErrAlreadyUpvoted},
		{"OwnOpinion", []driver.Value{int64(9), true, false}, repository.ErrOwnOpinion},
		{"Hidden", []driver.Value{int64(5), false, false}, repository.ErrOpinionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO opinion_upvotes").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT o.user_id").WithArgs("o1", int64(9)).
				WillReturnRows(sqlmock.NewRows([]string{"user_id", "visible", "exists"}).AddRow(tc.row...))
			mock.ExpectRollback()

			_, err := repo.Upvote(ctx, "o1", 9, now)
			assert.ErrorIs(t, err, tc.err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSoftDelete_OnlyOwn(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("UPDATE opinions SET deleted_at").WithArgs("o1", int64(9), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "o1", 9, now)
	assert.ErrorIs(t, err, repository.ErrOpinionNotFound)
}

func TestSetHidden(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("SET is_hidden").WithArgs("o1", true, "spam", int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM opinions o").WithArgs(int64(0), "o1").
		WillReturnRows(sqlmock.NewRows(opinionColumns).AddRow(
			"o1", int64(5), "Asha", "film", "Title", "Body", "", false, 0,
			true, "spam", int64(1), now, nil, now, now, false))

	o, err := repo.SetHidden(context.Background(), "o1", true, "spam", 1, now)
	require.NoError(t, err)
	assert.True(t, o.IsHidden)
	require.NotNil(t, o.ModeratedBy)
	assert.Equal(t, int64(1), *o.ModeratedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetHidden_RestoreClearsReason(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectExec("SET is_hidden").WithArgs("o1", false, nil, int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.SetHidden(context.Background(), "o1", false, "", 1, now)
	assert.ErrorIs(t, err, repository.ErrOpinionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
