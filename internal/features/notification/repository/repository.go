package repository

import (
	"context"
	"errors"

	"inphrone-backend/internal/features/notification/models"
)

var ErrSubscriptionNotFound = errors.New("push subscription not found")

type PushRepository interface {
	// Save inserts the subscription or refreshes its keys
	Save(ctx context.Context, sub *models.PushSubscription) error
	Delete(ctx context.Context, userID int64, endpoint string) error
	ListByUser(ctx context.Context, userID int64) ([]*models.PushSubscription, error)
	HasSubscription(ctx context.Context, userID int64) (bool, error)
}
