package repository

import (
	"context"
	"errors"
	"time"

	"inphrone-backend/internal/features/opinion/models"
)

var (
	ErrOpinionNotFound = errors.New("opinion not found")
	ErrAlreadyUpvoted  = errors.New("already upvoted")
	ErrOwnOpinion      = errors.New("cannot upvote own opinion")
)

type OpinionRepository interface {
	Create(ctx context.Context, o *models.Opinion) error
	// Get excludes deleted opinions
	Get(ctx context.Context, id string, viewerID int64) (*models.Opinion, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Opinion, error)
	// Upvote inserts the (opinion, user) pair and increments the counter
	Upvote(ctx context.Context, id string, userID int64, at time.Time) (*models.Opinion, error)
	// SoftDelete marks the author's own opinion deleted
	SoftDelete(ctx context.Context, id string, authorID int64, at time.Time) error
	SetHidden(ctx context.Context, id string, hidden bool, reason string, actorID int64, at time.Time) (*models.Opinion, error)
	// Remove deletes an opinion on behalf of a moderator
	Remove(ctx context.Context, id string, reason string, actorID int64, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
