package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/notification/repository"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) repository.PushRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Save(ctx context.Context, sub *models.PushSubscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
	`, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID int64, endpoint string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	if n == 0 {
		return repository.ErrSubscriptionNotFound
	}
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.PushSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*models.PushSubscription{}
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (r *postgresRepository) HasSubscription(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM push_subscriptions WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check push subscription: %w", err)
	}
	return exists, nil
}
