package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inphrone-backend/internal/common/config"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/common/metrics"
	"inphrone-backend/internal/common/validation"
	"inphrone-backend/internal/features/yourturn/models"
	"inphrone-backend/internal/features/yourturn/repository"
	"inphrone-backend/internal/platform/realtime"
)

const (
	SlotsTable     = "your_turn_slots"
	QuestionsTable = "your_turn_questions"

	dateLayout = "2006-01-02"
)

// ChangeFeed publishes and delivers row change events
type ChangeFeed interface {
	Publish(ctx context.Context, table, id, op string) error
	Subscribe(ctx context.Context, table string) (realtime.Subscription, error)
}

// WinnerNotifier tells a user they won a slot
type WinnerNotifier interface {
	NotifySlotWinner(ctx context.Context, userID int64, slot *models.Slot) error
}

type Option func(*Service)

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithWinnerNotifier enables the direct message sent to each new winner
func WithWinnerNotifier(n WinnerNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Ticker abstracts time.Ticker so observer polling can be driven by tests
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop() { t.t.Stop() }

// WithTicker replaces the observer poll ticker factory
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(s *Service) { s.newTicker = newTicker }
}

type Service struct {
	repo      repository.SlotRepository
	feed      ChangeFeed
	metrics   *metrics.Metrics
	cfg       config.YourTurnConfig
	loc       *time.Location
	slotTimes []time.Duration
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	notifier  WinnerNotifier
}

func NewService(repo repository.SlotRepository, feed ChangeFeed, m *metrics.Metrics, cfg config.YourTurnConfig, opts ...Option) (*Service, error) {
	slotTimes, err := cfg.ParsedSlotTimes()
	if err != nil {
		return nil, err
	}
	if len(slotTimes) == 0 {
		return nil, fmt.Errorf("at least one slot time is required")
	}
	if cfg.ObservePollInterval <= 0 {
		cfg.ObservePollInterval = 5 * time.Second
	}

	s := &Service{
		repo:      repo,
		feed:      feed,
		metrics:   m,
		cfg:       cfg,
		loc:       cfg.Location(),
		slotTimes: slotTimes,
		now:       time.Now,
		newTicker: func(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Today returns the current date in the slot timezone
func (s *Service) Today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

// EnsureDay creates the day's slots if they do not exist yet
func (s *Service) EnsureDay(ctx context.Context, day time.Time) (int, error) {
	day = day.In(s.loc)
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	now := s.now()

	created := 0
	for i, offset := range s.slotTimes {
		opensAt := midnight.Add(offset)
		slot := &models.Slot{
			ID:         uuid.NewString(),
			Date:       midnight.Format(dateLayout),
			SlotNumber: i + 1,
			OpensAt:    opensAt,
			EndsAt:     opensAt.Add(s.cfg.Window),
			Status:     models.SlotStatusScheduled,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ok, err := s.repo.EnsureSlot(ctx, slot)
		if err != nil {
			return created, errors.NewDatabaseError("ensure slot", err)
		}
		if ok {
			created++
			s.publish(ctx, SlotsTable, slot.ID, realtime.OpInsert)
		}
	}
	return created, nil
}

func (s *Service) GetSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, mapError(err, slotID)
	}
	return slot, nil
}

// GetSlotDetails returns the slot together with its live question
func (s *Service) GetSlotDetails(ctx context.Context, slotID string, userID int64) (*models.SlotDetails, error) {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	details := &models.SlotDetails{Slot: slot}
	if slot.Status != models.SlotStatusWon {
		return details, nil
	}

	q, err := s.repo.GetQuestionBySlot(ctx, slotID)
	switch {
	case err == nil && !q.IsDeleted:
		if err := s.fillMyVote(ctx, q, userID); err != nil {
			return nil, err
		}
		details.Question = q
	case err == nil, stderrors.Is(err, repository.ErrQuestionNotFound):
	default:
		return nil, errors.NewDatabaseError("get slot question", err)
	}
	return details, nil
}

func (s *Service) ListSlotsForDate(ctx context.Context, date string) ([]*models.Slot, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, errors.NewValidationError("date", "must be YYYY-MM-DD")
	}
	slots, err := s.repo.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, errors.NewDatabaseError("list slots", err)
	}
	if slots == nil {
		slots = []*models.Slot{}
	}
	return slots, nil
}

func (s *Service) TodaySlots(ctx context.Context) ([]*models.Slot, error) {
	return s.ListSlotsForDate(ctx, s.Today().Format(dateLayout))
}

// ClaimSlot makes one claim attempt using the server clock. It is never
// retried: a lost race must not be replayed.
func (s *Service) ClaimSlot(ctx context.Context, slotID string, userID int64) (*models.ClaimResult, error) {
	at := s.now()

	res, err := s.repo.Claim(ctx, slotID, userID, at)
	if err != nil {
		s.metrics.ObserveClaim("error")
		return nil, mapError(err, slotID)
	}
	s.metrics.ObserveClaim(string(res.Result))

	logger.Info().
		Str("slot_id", slotID).
		Int64("user_id", userID).
		Str("result", string(res.Result)).
		Int("attempts", res.Slot.AttemptCount).
		Bool("new_winner", res.NewlyWon).
		Msg("Slot claim processed")

	if res.Opened {
		s.metrics.ObserveTransition(string(models.SlotStatusOpen), 1)
	}
	if res.NewlyWon {
		s.metrics.ObserveTransition(string(models.SlotStatusWon), 1)
		s.notifyWinner(ctx, userID, res.Slot)
	}
	if res.Result != models.ClaimExpired || res.Opened {
		s.publish(ctx, SlotsTable, slotID, realtime.OpUpdate)
	}
	return res, nil
}

// SubmitQuestion publishes the winner's poll. Only the recorded winner of a
// slot that is still won may call it.
func (s *Service) SubmitQuestion(ctx context.Context, slotID string, userID int64, text string, options []string) (*models.Question, error) {
	if err := validation.ValidateQuestion(text); err != nil {
		return nil, err
	}
	if err := validation.ValidateOptions(options); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	options = validation.TrimOptions(options)
	q := &models.Question{
		ID:         uuid.NewString(),
		SlotID:     slotID,
		UserID:     userID,
		Text:       text,
		Options:    options,
		VoteCounts: make([]int64, len(options)),
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return nil, mapError(err, slotID)
	}

	logger.Info().Str("slot_id", slotID).Str("question_id", q.ID).Int64("user_id", userID).Msg("Question submitted")
	s.publish(ctx, QuestionsTable, q.ID, realtime.OpInsert)
	s.publish(ctx, SlotsTable, slotID, realtime.OpUpdate)
	return q, nil
}

func (s *Service) Vote(ctx context.Context, questionID string, userID int64, option int) (*models.Question, error) {
	q, err := s.repo.Vote(ctx, questionID, userID, option, s.now())
	if err != nil {
		return nil, mapError(err, questionID)
	}
	q.MyVote = &option

	s.publish(ctx, QuestionsTable, questionID, realtime.OpUpdate)
	return q, nil
}

func (s *Service) GetQuestion(ctx context.Context, questionID string, userID int64) (*models.Question, error) {
	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, mapError(err, questionID)
	}
	if q.IsDeleted {
		return nil, errors.NewQuestionNotFoundError(questionID)
	}
	if err := s.fillMyVote(ctx, q, userID); err != nil {
		return nil, err
	}
	return q, nil
}

// ModerateQuestion soft-deletes a question, keeping reason and actor
func (s *Service) ModerateQuestion(ctx context.Context, questionID string, actorID int64, reason string) error {
	if err := s.repo.ModerateQuestion(ctx, questionID, actorID, reason, s.now()); err != nil {
		return mapError(err, questionID)
	}
	logger.Info().Str("question_id", questionID).Int64("actor_id", actorID).Str("reason", reason).Msg("Question removed by moderator")
	s.publish(ctx, QuestionsTable, questionID, realtime.OpDelete)
	return nil
}

func (s *Service) ListHistory(ctx context.Context, limit, offset int) ([]*models.HistoryEntry, error) {
	entries, err := s.repo.ListHistory(ctx, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("list history", err)
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	return entries, nil
}

// Tick applies due transitions: scheduled to open, open to expired and
// resolved to archived once ArchiveAfter has passed.
func (s *Service) Tick(ctx context.Context, archive bool) (models.TickReport, error) {
	var report models.TickReport
	now := s.now()

	opened, err := s.repo.OpenDueSlots(ctx, now)
	if err != nil {
		return report, errors.NewDatabaseError("open slots", err)
	}
	report.Opened = s.announce(ctx, opened, models.SlotStatusOpen)

	expired, err := s.repo.ExpireElapsedSlots(ctx, now)
	if err != nil {
		return report, errors.NewDatabaseError("expire slots", err)
	}
	report.Expired = s.announce(ctx, expired, models.SlotStatusExpired)

	if archive {
		archived, err := s.repo.ArchiveResolved(ctx, now.Add(-s.cfg.ArchiveAfter), now)
		if err != nil {
			return report, errors.NewDatabaseError("archive slots", err)
		}
		report.Archived = s.announce(ctx, archived, models.SlotStatusArchived)
	}
	return report, nil
}

func (s *Service) announce(ctx context.Context, slots []*models.Slot, to models.SlotStatus) int {
	for _, slot := range slots {
		logger.Info().
			Str("slot_id", slot.ID).
			Str("date", slot.Date).
			Int("slot_number", slot.SlotNumber).
			Str("status", string(to)).
			Msg("Slot transitioned")
		s.publish(ctx, SlotsTable, slot.ID, realtime.OpUpdate)
	}
	s.metrics.ObserveTransition(string(to), len(slots))
	return len(slots)
}

func (s *Service) fillMyVote(ctx context.Context, q *models.Question, userID int64) error {
	if userID == 0 {
		return nil
	}
	vote, err := s.repo.GetUserVote(ctx, q.ID, userID)
	if err != nil {
		return errors.NewDatabaseError("get vote", err)
	}
	q.MyVote = vote
	return nil
}

const notifyTimeout = 10 * time.Second

// notifyWinner is detached from the request; the claim response never waits
// on the Bot API.
func (s *Service) notifyWinner(ctx context.Context, userID int64, slot *models.Slot) {
	if s.notifier == nil {
		return
	}
	won := *slot
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifySlotWinner(ctx, userID, &won); err != nil {
			logger.Warn().Err(err).Str("slot_id", won.ID).Int64("user_id", userID).Msg("Winner notification failed")
		}
	}()
}

// publish is best effort; observers also poll
func (s *Service) publish(ctx context.Context, table, id, op string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, table, id, op); err != nil {
		logger.Warn().Err(err).Str("table", table).Str("id", id).Msg("Failed to publish change event")
	}
}

func mapError(err error, id string) error {
	switch {
	case stderrors.Is(err, repository.ErrSlotNotFound):
		return errors.NewSlotNotFoundError(id)
	case stderrors.Is(err, repository.ErrSlotNotOpen):
		return errors.New(errors.ErrCodeSlotNotOpen, "Slot is not open yet").WithDetail("slot_id", id)
	case stderrors.Is(err, repository.ErrSlotArchived):
		return errors.New(errors.ErrCodeSlotArchived, "Slot has been archived").WithDetail("id", id)
	case stderrors.Is(err, repository.ErrNotWinner):
		return errors.New(errors.ErrCodeNotWinner, "Only the slot winner can do this").WithDetail("slot_id", id)
	case stderrors.Is(err, repository.ErrQuestionExists):
		return errors.NewConflictError("question", "already submitted for this slot")
	case stderrors.Is(err, repository.ErrQuestionNotFound):
		return errors.NewQuestionNotFoundError(id)
	case stderrors.Is(err, repository.ErrAlreadyVoted):
		return errors.New(errors.ErrCodeAlreadyVoted, "You have already voted on this question")
	case stderrors.Is(err, repository.ErrInvalidOption):
		return errors.NewValidationError("option", "out of range")
	default:
		return errors.NewDatabaseError("your turn", err)
	}
}
