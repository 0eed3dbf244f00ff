package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inphrone-backend/internal/features/streak/models"
	"inphrone-backend/internal/features/streak/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.StreakRepository {
	return &postgresRepository{db: db}
}

const streakColumns = `user_id, current_streak, longest_streak, total_active_days,
	COALESCE(to_char(last_activity_date, 'YYYY-MM-DD'), ''), updated_at`

func scanStreak(row interface{ Scan(...any) error }) (*models.Streak, error) {
	var s models.Streak
	if err := row.Scan(&s.UserID, &s.CurrentStreak, &s.LongestStreak, &s.TotalActiveDays,
		&s.LastActivityDate, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepository) Get(ctx context.Context, userID int64) (*models.Streak, error) {
	query := `SELECT ` + streakColumns + ` FROM user_streaks WHERE user_id = $1`

	s, err := scanStreak(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Streak{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return s, nil
}

func (r *postgresRepository) Update(ctx context.Context, userID int64, apply func(*models.Streak) (bool, error)) (*models.Streak, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, false, fmt.Errorf("failed to init streak: %w", err)
	}

	s, err := scanStreak(tx.QueryRowContext(ctx,
		`SELECT `+streakColumns+` FROM user_streaks WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock streak: %w", err)
	}

	changed, err := apply(s)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return s, false, tx.Commit()
	}

	var lastActivity any
	if s.LastActivityDate != "" {
		lastActivity = s.LastActivityDate
	}
	err = tx.QueryRowContext(ctx, `
		UPDATE user_streaks
		SET current_streak = $2, longest_streak = $3, total_active_days = $4,
			last_activity_date = $5, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`, userID, s.CurrentStreak, s.LongestStreak, s.TotalActiveDays, lastActivity).Scan(&s.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit streak: %w", err)
	}
	return s, true, nil
}

func (r *postgresRepository) AwardBadge(ctx context.Context, userID int64, code string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO user_badges (user_id, badge_code, awarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_code) DO NOTHING
	`, userID, code, at)
	if err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return n == 1, nil
}

func (r *postgresRepository) ListBadges(ctx context.Context, userID int64) ([]*models.Badge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, badge_code, awarded_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY awarded_at, badge_code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	badges := []*models.Badge{}
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.UserID, &b.Code, &b.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Name = models.BadgeName(b.Code)
		badges = append(badges, &b)
	}
	return badges, rows.Err()
}

func (r *postgresRepository) CountActiveSince(ctx context.Context, date string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_streaks WHERE last_activity_date >= $1`, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}
