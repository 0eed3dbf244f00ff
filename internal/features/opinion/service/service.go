package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	notifmodels "inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/opinion/models"
	"inphrone-backend/internal/features/opinion/repository"
	usermodels "inphrone-backend/internal/features/user/models"
)

type ActivityRecorder interface {
	MarkActive(ctx context.Context, userID int64) error
}

type ProfileLookup interface {
	Get(ctx context.Context, id int64) (*usermodels.User, error)
}

type EmailEnqueuer interface {
	Enqueue(ctx context.Context, req notifmodels.EmailRequest) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo     repository.OpinionRepository
	activity ActivityRecorder
	profiles ProfileLookup
	mailer   EmailEnqueuer
	now      func() time.Time
}

// NewService wires the feed. activity, profiles and mailer may be nil.
func NewService(repo repository.OpinionRepository, activity ActivityRecorder, profiles ProfileLookup, mailer EmailEnqueuer, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		activity: activity,
		profiles: profiles,
		mailer:   mailer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, userID int64, input *models.CreateOpinionRequest) (*models.Opinion, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" {
		return nil, errors.NewValidationError("title", "must not be blank")
	}
	if content == "" {
		return nil, errors.NewValidationError("content", "must not be blank")
	}

	now := s.now().UTC()
	o := &models.Opinion{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  input.Category,
		Title:     title,
		Content:   content,
		Genre:     strings.TrimSpace(input.Genre),
		WouldPay:  input.WouldPay,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, errors.NewDatabaseError("create opinion", err)
	}

	if s.activity != nil {
		if err := s.activity.MarkActive(ctx, userID); err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to record streak activity")
		}
	}

	logger.Info().Str("opinion_id", o.ID).Int64("user_id", userID).Str("category", string(o.Category)).Msg("Opinion created")
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string, viewer models.Viewer) (*models.Opinion, error) {
	o, err := s.repo.Get(ctx, id, viewer.ID)
	if err != nil {
		return nil, mapError(err, id)
	}
	if !viewer.CanSee(o) {
		return nil, errors.NewOpinionNotFoundError(id)
	}
	return o, nil
}

// List returns a page of the feed. Hidden opinions are listed for moderators
// and on an author's own page.
func (s *Service) List(ctx context.Context, query *models.ListQuery, viewer models.Viewer) ([]*models.Opinion, error) {
	filter := models.Filter{
		Category: query.Category,
		Genre:    strings.TrimSpace(query.Genre),
		AuthorID: query.AuthorID,
		Search:   query.Search,
		Sort:     query.Sort,
		Limit:    query.Limit,
		Offset:   query.Offset,
		ViewerID: viewer.ID,
	}
	filter.IncludeHidden = viewer.Moderator || (viewer.ID != 0 && query.AuthorID == viewer.ID)

	opinions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.NewDatabaseError("list opinions", err)
	}
	return opinions, nil
}

// Upvote counts one upvote per user and tells the author by email
func (s *Service) Upvote(ctx context.Context, id string, userID int64) (*models.Opinion, error) {
	o, err := s.repo.Upvote(ctx, id, userID, s.now().UTC())
	if err != nil {
		return nil, mapError(err, id)
	}
	s.notifyAuthor(ctx, o, userID)
	return o, nil
}

func (s *Service) notifyAuthor(ctx context.Context, o *models.Opinion, voterID int64) {
	if s.mailer == nil || s.profiles == nil {
		return
	}
	author, err := s.profiles.Get(ctx, o.UserID)
	if err != nil || author.Email == "" {
		return
	}
	data := map[string]interface{}{
		"opinion_id":    o.ID,
		"opinion_title": o.Title,
		"upvotes":       o.Upvotes,
	}
	if voter, err := s.profiles.Get(ctx, voterID); err == nil && voter.FirstName != "" {
		data["liker_name"] = voter.FirstName
	}
	req := notifmodels.EmailRequest{
		Type: notifmodels.EmailOpinionLiked,
		To:   author.Email,
		Name: author.FirstName,
		Data: data,
	}
	if err := s.mailer.Enqueue(ctx, req); err != nil {
		logger.Warn().Err(err).Str("opinion_id", o.ID).Msg("Failed to enqueue opinion_liked email")
	}
}

// Delete soft deletes the caller's own opinion
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	if err := s.repo.SoftDelete(ctx, id, userID, s.now().UTC()); err != nil {
		return mapError(err, id)
	}
	logger.Info().Str("opinion_id", id).Int64("user_id", userID).Msg("Opinion deleted by author")
	return nil
}

func (s *Service) Hide(ctx context.Context, id, reason string, actorID int64) (*models.Opinion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidationError("reason", "must not be blank")
	}
	o, err := s.repo.SetHidden(ctx, id, true, reason, actorID, s.now().UTC())
	if err != nil {
		return nil, mapError(err, id)
	}
	logger.Info().Str("opinion_id", id).Int64("moderator_id", actorID).Str("reason", reason).Msg("Opinion hidden")
	return o, nil
}

func (s *Service) Restore(ctx context.Context, id string, actorID int64) (*models.Opinion, error) {
	o, err := s.repo.SetHidden(ctx, id, false, "", actorID, s.now().UTC())
	if err != nil {
		return nil, mapError(err, id)
	}
	logger.Info().Str("opinion_id", id).Int64("moderator_id", actorID).Msg("Opinion restored")
	return o, nil
}

func (s *Service) Remove(ctx context.Context, id, reason string, actorID int64) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errors.NewValidationError("reason", "must not be blank")
	}
	if err := s.repo.Remove(ctx, id, reason, actorID, s.now().UTC()); err != nil {
		return mapError(err, id)
	}
	logger.Info().Str("opinion_id", id).Int64("moderator_id", actorID).Str("reason", reason).Msg("Opinion removed")
	return nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError("count opinions", err)
	}
	return n, nil
}

func mapError(err error, id string) error {
	switch {
	case stderrors.Is(err, repository.ErrOpinionNotFound):
		return errors.NewOpinionNotFoundError(id)
	case stderrors.Is(err, repository.ErrAlreadyUpvoted):
		return errors.New(errors.ErrCodeAlreadyVoted, "Opinion already upvoted").WithDetail("opinion_id", id)
	case stderrors.Is(err, repository.ErrOwnOpinion):
		return errors.NewForbiddenError("cannot upvote own opinion")
	default:
		return errors.NewDatabaseError("opinion", err)
	}
}
