package repository

import (
	"context"
	"errors"
	"time"

	"inphrone-backend/internal/features/yourturn/models"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotNotOpen      = errors.New("slot not open")
	ErrSlotArchived     = errors.New("slot archived")
	ErrNotWinner        = errors.New("not the slot winner")
	ErrQuestionExists   = errors.New("question already submitted")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrInvalidOption    = errors.New("invalid option")
)

type SlotRepository interface {
	// EnsureSlot inserts the slot unless one exists for its date and number
	EnsureSlot(ctx context.Context, slot *models.Slot) (bool, error)
	GetSlot(ctx context.Context, id string) (*models.Slot, error)
	ListSlotsByDate(ctx context.Context, date string) ([]*models.Slot, error)

	// Claim arbitrates the race with one conditional update. at is the
	// server clock at request time.
	Claim(ctx context.Context, slotID string, userID int64, at time.Time) (*models.ClaimResult, error)

	OpenDueSlots(ctx context.Context, now time.Time) ([]*models.Slot, error)
	ExpireElapsedSlots(ctx context.Context, now time.Time) ([]*models.Slot, error)
	// ArchiveResolved snapshots slots resolved before cutoff into history
	ArchiveResolved(ctx context.Context, cutoff, now time.Time) ([]*models.Slot, error)

	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	GetQuestionBySlot(ctx context.Context, slotID string) (*models.Question, error)
	Vote(ctx context.Context, questionID string, userID int64, option int, at time.Time) (*models.Question, error)
	GetUserVote(ctx context.Context, questionID string, userID int64) (*int, error)
	ModerateQuestion(ctx context.Context, id string, actorID int64, reason string, at time.Time) error

	ListHistory(ctx context.Context, limit, offset int) ([]*models.HistoryEntry, error)
}
