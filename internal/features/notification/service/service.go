package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/notification/preferences"
	"inphrone-backend/internal/features/notification/repository"
	usermodels "inphrone-backend/internal/features/user/models"
)

const (
	prefPromptDismissed = "push_prompt_dismissed"
	prefPromptLater     = "push_prompt_later"
	prefPromptSession   = "push_prompt_session"

	// LaterCooldown is how long "maybe later" snoozes the push prompt
	LaterCooldown = 7 * 24 * time.Hour
	// SessionWindow limits the prompt to once per session
	SessionWindow = 12 * time.Hour

	broadcastPageSize = 500
)

type EmailSender interface {
	Send(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error)
}

type EmailEnqueuer interface {
	Enqueue(ctx context.Context, req models.EmailRequest) error
}

// Recipients pages through profiles that have an email address
type Recipients interface {
	ListWithEmail(ctx context.Context, limit, offset int) ([]*usermodels.User, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	sender     EmailSender
	queue      EmailEnqueuer
	recipients Recipients
	push       repository.PushRepository
	prefs      preferences.Preferences
	now        func() time.Time
}

func NewService(sender EmailSender, queue EmailEnqueuer, recipients Recipients, push repository.PushRepository, prefs preferences.Preferences, opts ...Option) *Service {
	s := &Service{
		sender:     sender,
		queue:      queue,
		recipients: recipients,
		push:       push,
		prefs:      prefs,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendEmail delivers immediately, bypassing the queue
func (s *Service) SendEmail(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error) {
	return s.sender.Send(ctx, req)
}

// Enqueue hands the request to the background worker
func (s *Service) Enqueue(ctx context.Context, req models.EmailRequest) error {
	return s.queue.Enqueue(ctx, req)
}

// Broadcast queues the message for every profile with an email. A failed
// enqueue is counted and skipped.
func (s *Service) Broadcast(ctx context.Context, input *models.BroadcastRequest) (*models.BroadcastResult, error) {
	subject := strings.TrimSpace(input.Subject)
	message := strings.TrimSpace(input.Message)
	if subject == "" || message == "" {
		return nil, errors.NewValidationError("message", "subject and message are required")
	}

	result := &models.BroadcastResult{}
	for offset := 0; ; offset += broadcastPageSize {
		users, err := s.recipients.ListWithEmail(ctx, broadcastPageSize, offset)
		if err != nil {
			return result, errors.NewDatabaseError("list recipients", err)
		}
		for _, u := range users {
			err := s.queue.Enqueue(ctx, models.EmailRequest{
				Type: models.EmailBroadcast,
				To:   u.Email,
				Name: u.FirstName,
				Data: map[string]interface{}{"subject": subject, "message": message},
			})
			if err != nil {
				result.Failed++
				logger.Warn().Err(err).Int64("user_id", u.ID).Msg("Failed to enqueue broadcast")
				continue
			}
			result.Enqueued++
		}
		if len(users) < broadcastPageSize {
			break
		}
	}

	logger.Info().Int("enqueued", result.Enqueued).Int("failed", result.Failed).Msg("Broadcast queued")
	return result, nil
}

// Subscribe stores the browser subscription and clears any prompt snooze
func (s *Service) Subscribe(ctx context.Context, userID int64, input *models.SubscribeRequest) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{
		UserID:    userID,
		Endpoint:  strings.TrimSpace(input.Endpoint),
		P256dh:    input.Keys.P256dh,
		Auth:      input.Keys.Auth,
		CreatedAt: s.now().UTC(),
	}
	if err := s.push.Save(ctx, sub); err != nil {
		return nil, errors.NewDatabaseError("save push subscription", err)
	}
	if err := s.prefs.Delete(ctx, userID, prefPromptDismissed, prefPromptLater); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to clear push prompt preferences")
	}
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, userID int64, endpoint string) error {
	if err := s.push.Delete(ctx, userID, strings.TrimSpace(endpoint)); err != nil {
		if stderrors.Is(err, repository.ErrSubscriptionNotFound) {
			return errors.NewNotFoundError("push subscription", endpoint)
		}
		return errors.NewDatabaseError("delete push subscription", err)
	}
	return nil
}

func (s *Service) ListSubscriptions(ctx context.Context, userID int64) ([]*models.PushSubscription, error) {
	subs, err := s.push.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list push subscriptions", err)
	}
	return subs, nil
}

// ShouldPrompt decides whether to show the push permission prompt. A
// positive answer starts the session window so the prompt shows once.
func (s *Service) ShouldPrompt(ctx context.Context, userID int64) (*models.PromptState, error) {
	subscribed, err := s.push.HasSubscription(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("check push subscription", err)
	}
	if subscribed {
		return &models.PromptState{Reason: "subscribed"}, nil
	}

	checks := []struct {
		key    string
		reason string
	}{
		{prefPromptDismissed, "dismissed"},
		{prefPromptLater, "snoozed"},
		{prefPromptSession, "shown_this_session"},
	}
	for _, check := range checks {
		_, ok, err := s.prefs.Get(ctx, userID, check.key)
		if err != nil {
			return nil, errors.NewCacheError("read push prompt preference", err)
		}
		if ok {
			return &models.PromptState{Reason: check.reason}, nil
		}
	}

	stamp := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.prefs.Set(ctx, userID, prefPromptSession, stamp, SessionWindow); err != nil {
		return nil, errors.NewCacheError("store push prompt session", err)
	}
	return &models.PromptState{ShouldPrompt: true}, nil
}

func (s *Service) DismissPrompt(ctx context.Context, userID int64, mode models.DismissMode) error {
	stamp := strconv.FormatInt(s.now().Unix(), 10)
	var err error
	switch mode {
	case models.DismissPermanent:
		err = s.prefs.Set(ctx, userID, prefPromptDismissed, stamp, 0)
	case models.DismissLater:
		err = s.prefs.Set(ctx, userID, prefPromptLater, stamp, LaterCooldown)
	default:
		return errors.NewValidationError("mode", "must be permanent or later")
	}
	if err != nil {
		return errors.NewCacheError("store push prompt preference", err)
	}
	logger.Debug().Int64("user_id", userID).Str("mode", string(mode)).Msg("Push prompt dismissed")
	return nil
}
