package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inphrone-backend/internal/features/yourturn/models"
	"inphrone-backend/internal/features/yourturn/repository"
	"inphrone-backend/internal/platform/realtime"
)

// memoryRepo follows the same conditional-update rules as the postgres
// repository, serialised by a mutex.
type memoryRepo struct {
	mu        sync.Mutex
	slots     map[string]*models.Slot
	attempts  map[string]map[int64]bool
	questions map[string]*models.Question
	votes     map[string]map[int64]int
	history   []*models.HistoryEntry
	fetches   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		slots:     make(map[string]*models.Slot),
		attempts:  make(map[string]map[int64]bool),
		questions: make(map[string]*models.Question),
		votes:     make(map[string]map[int64]int),
	}
}

func copySlot(s *models.Slot) *models.Slot {
	c := *s
	if s.WinnerID != nil {
		w := *s.WinnerID
		c.WinnerID = &w
	}
	return &c
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	c.Options = append([]string(nil), q.Options...)
	c.VoteCounts = append([]int64(nil), q.VoteCounts...)
	c.Total()
	return &c
}

func (r *memoryRepo) EnsureSlot(_ context.Context, slot *models.Slot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Date == slot.Date && s.SlotNumber == slot.SlotNumber {
			return false, nil
		}
	}
	c := copySlot(slot)
	c.Status = models.SlotStatusScheduled
	r.slots[c.ID] = c
	return true, nil
}

func (r *memoryRepo) GetSlot(_ context.Context, id string) (*models.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	s, ok := r.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return copySlot(s), nil
}

func (r *memoryRepo) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func (r *memoryRepo) ListSlotsByDate(_ context.Context, date string) ([]*models.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Slot
	for _, s := range r.slots {
		if s.Date == date {
			out = append(out, copySlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (r *memoryRepo) Claim(_ context.Context, slotID string, userID int64, at time.Time) (*models.ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	res := &models.ClaimResult{}
	if s.Status == models.SlotStatusScheduled && !at.Before(s.OpensAt) {
		s.Status = models.SlotStatusOpen
		res.Opened = true
	}
	if s.Status == models.SlotStatusOpen && !at.Before(s.OpensAt) && at.Before(s.EndsAt) {
		s.Status = models.SlotStatusWon
		s.WinnerID = &userID
		s.WonAt = &at
		s.ResolvedAt = &at
		s.AttemptCount++
		r.attempts[slotID] = map[int64]bool{userID: true}
		res.Result, res.Slot, res.NewlyWon = models.ClaimWon, copySlot(s), true
		return res, nil
	}

	res.Slot = copySlot(s)
	switch s.Status {
	case models.SlotStatusScheduled:
		return nil, repository.ErrSlotNotOpen
	case models.SlotStatusOpen:
		if at.Before(s.OpensAt) {
			return nil, repository.ErrSlotNotOpen
		}
		res.Result = models.ClaimExpired
	case models.SlotStatusWon, models.SlotStatusArchived:
		switch {
		case s.WinnerID == nil:
			res.Result = models.ClaimExpired
		case *s.WinnerID == userID:
			res.Result = models.ClaimWon
		default:
			if s.Status == models.SlotStatusWon {
				if _, seen := r.attempts[slotID][userID]; !seen {
					r.attempts[slotID][userID] = false
					s.AttemptCount++
				}
			}
			res.Result = models.ClaimAlreadyTaken
			res.Slot = copySlot(s)
		}
	default:
		res.Result = models.ClaimExpired
	}
	return res, nil
}

func (r *memoryRepo) transition(pred func(*models.Slot) bool, apply func(*models.Slot)) []*models.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Slot
	for _, s := range r.slots {
		if pred(s) {
			apply(s)
			out = append(out, copySlot(s))
		}
	}
	return out
}

func (r *memoryRepo) OpenDueSlots(_ context.Context, now time.Time) ([]*models.Slot, error) {
	return r.transition(
		func(s *models.Slot) bool { return s.Status == models.SlotStatusScheduled && !s.OpensAt.After(now) },
		func(s *models.Slot) { s.Status = models.SlotStatusOpen },
	), nil
}

func (r *memoryRepo) ExpireElapsedSlots(_ context.Context, now time.Time) ([]*models.Slot, error) {
	return r.transition(
		func(s *models.Slot) bool {
			return s.Status == models.SlotStatusOpen && !s.EndsAt.After(now) && s.WinnerID == nil
		},
		func(s *models.Slot) {
			s.Status = models.SlotStatusExpired
			s.ResolvedAt = &now
		},
	), nil
}

func (r *memoryRepo) ArchiveResolved(_ context.Context, cutoff, now time.Time) ([]*models.Slot, error) {
	return r.transition(
		func(s *models.Slot) bool {
			return (s.Status == models.SlotStatusWon || s.Status == models.SlotStatusExpired) &&
				s.ResolvedAt != nil && !s.ResolvedAt.After(cutoff)
		},
		func(s *models.Slot) {
			entry := &models.HistoryEntry{SlotID: s.ID, Date: s.Date, SlotNumber: s.SlotNumber,
				FinalStatus: s.Status, WinnerID: s.WinnerID, AttemptCount: s.AttemptCount, ArchivedAt: now}
			for _, q := range r.questions {
				if q.SlotID == s.ID && !q.IsDeleted {
					entry.QuestionID = q.ID
					entry.QuestionText = q.Text
					entry.Options = q.Options
					entry.VoteCounts = append([]int64(nil), q.VoteCounts...)
				}
			}
			r.history = append(r.history, entry)
			s.Status = models.SlotStatusArchived
			s.ArchivedAt = &now
		},
	), nil
}

func (r *memoryRepo) CreateQuestion(_ context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[q.SlotID]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if !s.IsWinner(q.UserID) {
		return repository.ErrNotWinner
	}
	if s.Status == models.SlotStatusArchived {
		return repository.ErrSlotArchived
	}
	for _, existing := range r.questions {
		if existing.SlotID == q.SlotID {
			return repository.ErrQuestionExists
		}
	}
	r.questions[q.ID] = copyQuestion(q)
	return nil
}

func (r *memoryRepo) GetQuestion(_ context.Context, id string) (*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, repository.ErrQuestionNotFound
	}
	return copyQuestion(q), nil
}

func (r *memoryRepo) GetQuestionBySlot(_ context.Context, slotID string) (*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.questions {
		if q.SlotID == slotID {
			return copyQuestion(q), nil
		}
	}
	return nil, repository.ErrQuestionNotFound
}

func (r *memoryRepo) Vote(_ context.Context, questionID string, userID int64, option int, _ time.Time) (*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[questionID]
	if !ok || q.IsDeleted {
		return nil, repository.ErrQuestionNotFound
	}
	if r.slots[q.SlotID].Status == models.SlotStatusArchived {
		return nil, repository.ErrSlotArchived
	}
	if _, voted := r.votes[questionID][userID]; voted {
		return nil, repository.ErrAlreadyVoted
	}
	if option < 0 || option >= len(q.Options) {
		return nil, repository.ErrInvalidOption
	}
	if r.votes[questionID] == nil {
		r.votes[questionID] = make(map[int64]int)
	}
	r.votes[questionID][userID] = option
	q.VoteCounts[option]++
	return copyQuestion(q), nil
}

func (r *memoryRepo) GetUserVote(_ context.Context, questionID string, userID int64) (*int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	option, ok := r.votes[questionID][userID]
	if !ok {
		return nil, nil
	}
	return &option, nil
}

func (r *memoryRepo) ModerateQuestion(_ context.Context, id string, actorID int64, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok || q.IsDeleted {
		return repository.ErrQuestionNotFound
	}
	q.IsDeleted = true
	q.DeletedReason = reason
	q.DeletedBy = &actorID
	q.DeletedAt = &at
	return nil
}

func (r *memoryRepo) ListHistory(_ context.Context, limit, offset int) ([]*models.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.history) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(r.history) {
		end = len(r.history)
	}
	return append([]*models.HistoryEntry(nil), r.history[offset:end]...), nil
}

// addSlot inserts a slot directly in the given state
func (r *memoryRepo) addSlot(status models.SlotStatus, opensAt time.Time) *models.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &models.Slot{
		ID:         uuid.NewString(),
		Date:       opensAt.Format(dateLayout),
		SlotNumber: len(r.slots) + 1,
		OpensAt:    opensAt,
		EndsAt:     opensAt.Add(20 * time.Second),
		Status:     status,
	}
	r.slots[s.ID] = s
	return copySlot(s)
}

func (r *memoryRepo) setSlot(id string, mutate func(*models.Slot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(r.slots[id])
}

// fakeFeed records published events and hands out controllable subscriptions
type fakeFeed struct {
	mu         sync.Mutex
	published  []realtime.Event
	subs       []*fakeSubscription
	failNext   bool
	subscribed chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subscribed: make(chan struct{}, 16)}
}

func (f *fakeFeed) Publish(_ context.Context, table, id, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, realtime.Event{Table: table, ID: id, Op: op})
	return nil
}

func (f *fakeFeed) Subscribe(_ context.Context, _ string) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, context.DeadlineExceeded
	}
	sub := &fakeSubscription{
		events: make(chan realtime.Event, 16),
		resync: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	f.subs = append(f.subs, sub)
	f.subscribed <- struct{}{}
	return sub, nil
}

func (f *fakeFeed) latest() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func (f *fakeFeed) events(table string) []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.Event
	for _, e := range f.published {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

type fakeSubscription struct {
	events    chan realtime.Event
	resync    chan struct{}
	closed    chan struct{}
	once      sync.Once
	closeOnce sync.Once
}

func (s *fakeSubscription) Events() <-chan realtime.Event { return s.events }
func (s *fakeSubscription) Resync() <-chan struct{} { return s.resync }

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// reconnect simulates the client re-subscribing after a lost connection
func (s *fakeSubscription) reconnect() {
	s.resync <- struct{}{}
}

// drop ends the subscription from the feed side
func (s *fakeSubscription) drop() {
	s.once.Do(func() { close(s.events) })
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop() {}

func (t *manualTicker) tick() { t.ch <- time.Now() }

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
