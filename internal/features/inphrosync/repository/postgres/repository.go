package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"inphrone-backend/internal/features/inphrosync/models"
	"inphrone-backend/internal/features/inphrosync/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.QuestionRepository {
	return &postgresRepository{db: db}
}

const questionColumns = `id, to_char(question_date, 'YYYY-MM-DD'), question_type, question_text, options, is_active, created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	var q models.Question
	if err := row.Scan(&q.ID, &q.Date, &q.Type, &q.Text, pq.Array(&q.Options), &q.IsActive, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *postgresRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inphrosync_questions (id, question_date, question_type, question_text, options, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, q.ID, q.Date, q.Type, q.Text, pq.Array(q.Options), q.IsActive, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM inphrosync_questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

func (r *postgresRepository) SetActive(ctx context.Context, id string, active bool) (*models.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx, `
		UPDATE inphrosync_questions SET is_active = $2 WHERE id = $1
		RETURNING `+questionColumns, id, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return q, nil
}

func (r *postgresRepository) ListByDate(ctx context.Context, date string, activeOnly bool) ([]*models.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM inphrosync_questions
		WHERE question_date = $1 AND (is_active OR NOT $2)
		ORDER BY created_at, id
	`, date, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []*models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *postgresRepository) CountsByDate(ctx context.Context, date string) (map[string]map[int]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.question_id, r.option_index, COUNT(*)
		FROM inphrosync_responses r
		JOIN inphrosync_questions q ON q.id = r.question_id
		WHERE q.question_date = $1
		GROUP BY r.question_id, r.option_index
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[int]int64)
	for rows.Next() {
		var (
			questionID string
			option     int
			n          int64
		)
		if err := rows.Scan(&questionID, &option, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		if counts[questionID] == nil {
			counts[questionID] = make(map[int]int64)
		}
		counts[questionID][option] = n
	}
	return counts, rows.Err()
}

func (r *postgresRepository) UserAnswers(ctx context.Context, date string, userID int64) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.question_id, r.option_index
		FROM inphrosync_responses r
		JOIN inphrosync_questions q ON q.id = r.question_id
		WHERE q.question_date = $1 AND r.user_id = $2
	`, date, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[string]int)
	for rows.Next() {
		var (
			questionID string
			option     int
		)
		if err := rows.Scan(&questionID, &option); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers[questionID] = option
	}
	return answers, rows.Err()
}

// Respond stores one answer per (question, user) for an active question
func (r *postgresRepository) Respond(ctx context.Context, questionID string, userID int64, option int, responseDate string) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO inphrosync_responses (question_id, user_id, option_index, response_date)
		SELECT q.id, $2, $3, $4
		FROM inphrosync_questions q
		WHERE q.id = $1 AND q.is_active AND $3 < array_length(q.options, 1)
		ON CONFLICT (question_id, user_id) DO NOTHING
	`, questionID, userID, option, responseDate)
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	} else if n == 1 {
		return nil
	}

	var (
		active   bool
		options  int
		answered bool
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT q.is_active, array_length(q.options, 1),
			EXISTS (SELECT 1 FROM inphrosync_responses r WHERE r.question_id = q.id AND r.user_id = $2)
		FROM inphrosync_questions q
		WHERE q.id = $1
	`, questionID, userID).Scan(&active, &options, &answered)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrQuestionNotFound
	case err != nil:
		return fmt.Errorf("failed to classify response: %w", err)
	case answered:
		return repository.ErrAlreadyResponded
	case !active:
		return repository.ErrQuestionNotFound
	default:
		return repository.ErrInvalidOption
	}
}

func (r *postgresRepository) CountResponses(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inphrosync_responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return n, nil
}
