package repository

import (
	"context"
	"errors"

	"inphrone-backend/internal/features/inphrosync/models"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadyResponded = errors.New("already responded")
	ErrInvalidOption    = errors.New("option out of range")
)

type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Question, error)
	// ListByDate returns the questions of date ordered by creation
	ListByDate(ctx context.Context, date string, activeOnly bool) ([]*models.Question, error)
	// CountsByDate returns question id -> option index -> responses
	CountsByDate(ctx context.Context, date string) (map[string]map[int]int64, error)
	UserAnswers(ctx context.Context, date string, userID int64) (map[string]int, error)
	Respond(ctx context.Context, questionID string, userID int64, option int, responseDate string) error
	CountResponses(ctx context.Context) (int64, error)
}
