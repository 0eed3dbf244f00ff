package service

import (
	"context"
	"sync"
	"time"

	"inphrone-backend/internal/common/logger"
)

const housekeepingInterval = time.Minute

// Scheduler drives slot transitions. One loop applies open/expire every
// interval, a slower one creates upcoming slots and archives resolved ones.
// Several instances may run; every transition is a conditional update.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(svc *Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		svc:      svc,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	logger.Info().Dur("interval", s.interval).Msg("Starting slot scheduler")

	s.housekeeping()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.svc.Tick(s.ctx, false); err != nil && s.ctx.Err() == nil {
					logger.Error().Err(err).Msg("Slot transition pass failed")
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(housekeepingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.housekeeping()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	logger.Info().Msg("Stopping slot scheduler")
	s.cancel()
	s.wg.Wait()
	logger.Info().Msg("Slot scheduler stopped")
}

// housekeeping ensures today's and tomorrow's slots exist and archives
// slots resolved more than ArchiveAfter ago.
func (s *Scheduler) housekeeping() {
	today := s.svc.Today()
	for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
		created, err := s.svc.EnsureDay(s.ctx, day)
		if err != nil {
			logger.Error().Err(err).Str("date", day.Format(dateLayout)).Msg("Failed to create slots")
			continue
		}
		if created > 0 {
			logger.Info().Int("created", created).Str("date", day.Format(dateLayout)).Msg("Slots scheduled")
		}
	}

	report, err := s.svc.Tick(s.ctx, true)
	if err != nil {
		logger.Error().Err(err).Msg("Slot housekeeping pass failed")
		return
	}
	if report.Archived > 0 {
		logger.Info().Int("archived", report.Archived).Msg("Slots archived")
	}
}
