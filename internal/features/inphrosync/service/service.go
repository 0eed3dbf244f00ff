package service

import (
	"context"
	stderrors "errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"inphrone-backend/internal/common/cache"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/inphrosync/models"
	"inphrone-backend/internal/features/inphrosync/repository"
)

const (
	dateLayout = "2006-01-02"
	dayTTL     = 30 * time.Second
)

// DayCache holds aggregated day results; a nil cache always loads
type DayCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func() (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// ActivityRecorder counts a response towards the user's streak
type ActivityRecorder interface {
	MarkActive(ctx context.Context, userID int64) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo     repository.QuestionRepository
	cache    DayCache
	activity ActivityRecorder
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo repository.QuestionRepository, dayCache DayCache, activity ActivityRecorder, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:     repo,
		cache:    dayCache,
		activity: activity,
		loc:      loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) Today(ctx context.Context, userID int64) (*models.DayResult, error) {
	return s.GetDay(ctx, s.today().Format(dateLayout), userID)
}

// Yesterday is shown as the "results are in" page
func (s *Service) Yesterday(ctx context.Context, userID int64) (*models.DayResult, error) {
	return s.GetDay(ctx, s.today().AddDate(0, 0, -1).Format(dateLayout), userID)
}

// GetDay aggregates the active questions of date. Counts come from the cache,
// the caller's own answers are always read fresh.
func (s *Service) GetDay(ctx context.Context, date string, userID int64) (*models.DayResult, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, errors.NewValidationError("date", "must be YYYY-MM-DD")
	}

	var day models.DayResult
	load := func() (interface{}, error) { return s.aggregate(ctx, date) }
	if s.cache != nil {
		if err := s.cache.GetOrSet(ctx, cache.InphroSyncDayKey(date), &day, dayTTL, load); err != nil {
			return nil, err
		}
	} else {
		fresh, err := s.aggregate(ctx, date)
		if err != nil {
			return nil, err
		}
		day = *fresh
	}

	if userID == 0 {
		return &day, nil
	}

	answers, err := s.repo.UserAnswers(ctx, date, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("get answers", err)
	}
	day.Answered = len(day.Questions) > 0
	for _, q := range day.Questions {
		if option, ok := answers[q.ID]; ok {
			option := option
			q.MyAnswer = &option
		} else {
			day.Answered = false
		}
	}
	return &day, nil
}

func (s *Service) aggregate(ctx context.Context, date string) (*models.DayResult, error) {
	questions, err := s.repo.ListByDate(ctx, date, true)
	if err != nil {
		return nil, errors.NewDatabaseError("list questions", err)
	}
	counts, err := s.repo.CountsByDate(ctx, date)
	if err != nil {
		return nil, errors.NewDatabaseError("count responses", err)
	}

	day := &models.DayResult{Date: date, Questions: make([]*models.QuestionResult, 0, len(questions))}
	for _, q := range questions {
		result := &models.QuestionResult{Question: *q, Counts: make([]int64, len(q.Options))}
		for option, n := range counts[q.ID] {
			if option >= 0 && option < len(result.Counts) {
				result.Counts[option] = n
				result.TotalResponses += n
			}
		}
		result.Percentages = Percentages(result.Counts)
		day.Questions = append(day.Questions, result)
	}
	return day, nil
}

// Percentages rounds each share to one decimal; all zero without responses
func Percentages(counts []int64) []float64 {
	out := make([]float64, len(counts))
	var total int64
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return out
	}
	for i, n := range counts {
		out[i] = math.Round(float64(n)/float64(total)*1000) / 10
	}
	return out
}

// Respond records the user's answer to one of today's questions
func (s *Service) Respond(ctx context.Context, questionID string, userID int64, option int) error {
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return mapError(err, questionID)
	}
	today := s.today().Format(dateLayout)
	if !q.IsActive {
		return errors.NewNotFoundError("question", questionID)
	}
	if q.Date != today {
		return errors.NewConflictError("question", "poll is closed")
	}
	if option < 0 || option >= len(q.Options) {
		return errors.NewValidationError("option", "out of range")
	}

	if err := s.repo.Respond(ctx, questionID, userID, option, today); err != nil {
		return mapError(err, questionID)
	}

	s.invalidate(ctx, q.Date)
	logger.Debug().Str("question_id", questionID).Int64("user_id", userID).Int("option", option).Msg("InphroSync response stored")

	if s.activity != nil {
		if err := s.activity.MarkActive(ctx, userID); err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to record streak activity")
		}
	}
	return nil
}

func (s *Service) CreateQuestion(ctx context.Context, input *models.CreateQuestionRequest) (*models.Question, error) {
	if _, err := time.Parse(dateLayout, input.Date); err != nil {
		return nil, errors.NewValidationError("date", "must be YYYY-MM-DD")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewValidationError("text", "cannot be empty")
	}
	options := make([]string, 0, len(input.Options))
	seen := make(map[string]struct{}, len(input.Options))
	for _, opt := range input.Options {
		opt = strings.TrimSpace(opt)
		key := strings.ToLower(opt)
		if _, dup := seen[key]; dup || opt == "" {
			return nil, errors.NewValidationError("options", "options must be distinct and non-empty")
		}
		seen[key] = struct{}{}
		options = append(options, opt)
	}

	q := &models.Question{
		ID:        uuid.NewString(),
		Date:      input.Date,
		Type:      input.Type,
		Text:      text,
		Options:   options,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, errors.NewDatabaseError("create question", err)
	}
	s.invalidate(ctx, q.Date)

	logger.Info().Str("question_id", q.ID).Str("date", q.Date).Str("type", string(q.Type)).Msg("InphroSync question created")
	return q, nil
}

func (s *Service) SetActive(ctx context.Context, questionID string, active bool) (*models.Question, error) {
	q, err := s.repo.SetActive(ctx, questionID, active)
	if err != nil {
		return nil, mapError(err, questionID)
	}
	s.invalidate(ctx, q.Date)
	return q, nil
}

func (s *Service) CountResponses(ctx context.Context) (int64, error) {
	n, err := s.repo.CountResponses(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError("count responses", err)
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.InphroSyncDayKey(date)); err != nil {
		logger.Warn().Err(err).Str("date", date).Msg("Failed to invalidate InphroSync cache")
	}
}

func mapError(err error, id string) error {
	switch {
	case stderrors.Is(err, repository.ErrQuestionNotFound):
		return errors.NewNotFoundError("question", id)
	case stderrors.Is(err, repository.ErrAlreadyResponded):
		return errors.New(errors.ErrCodeAlreadyVoted, "You have already answered this question")
	case stderrors.Is(err, repository.ErrInvalidOption):
		return errors.NewValidationError("option", "out of range")
	default:
		return errors.NewDatabaseError("inphrosync", err)
	}
}
