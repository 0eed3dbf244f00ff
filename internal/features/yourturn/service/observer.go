package service

import (
	"context"

	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/yourturn/models"
	"inphrone-backend/internal/platform/realtime"
)

// ObserveSlot streams the slot's state: the current state first, then every
// change of status, attempt count or winner. Change events only trigger a
// re-fetch of the authoritative row, as does every reconnect of the feed.
// A poll ticker covers lost events and a failed subscription is retried on
// the next tick.
// The channel closes when ctx ends or the slot is archived.
func (s *Service) ObserveSlot(ctx context.Context, slotID string) (<-chan *models.Slot, error) {
	current, err := s.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	out := make(chan *models.Slot, 1)
	out <- current
	if current.Status == models.SlotStatusArchived {
		close(out)
		return out, nil
	}

	go s.observe(ctx, slotID, current, out)
	return out, nil
}

func (s *Service) observe(ctx context.Context, slotID string, last *models.Slot, out chan<- *models.Slot) {
	defer close(out)

	s.metrics.ObserverOpened()
	defer s.metrics.ObserverClosed()

	log := logger.Component("slot_observer").With().Str("slot_id", slotID).Logger()

	sub, events, resync := s.subscribe(ctx)
	defer func() {
		if sub != nil {
			_ = sub.Close()
		}
	}()

	ticker := s.newTicker(s.cfg.ObservePollInterval)
	defer ticker.Stop()

	for {
		refetch := false

		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				log.Debug().Msg("Change feed dropped, falling back to polling")
				_ = sub.Close()
				sub, events, resync = nil, nil, nil
				continue
			}
			refetch = event.ID == slotID
		case <-resync:
			log.Debug().Msg("Change feed reconnected, re-fetching")
			refetch = true
		case <-ticker.C():
			if sub == nil {
				sub, events, resync = s.subscribe(ctx)
			}
			refetch = true
		}

		if !refetch {
			continue
		}

		slot, err := s.repo.GetSlot(ctx, slotID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Msg("Slot re-fetch failed")
			continue
		}
		if last.SameState(slot) {
			continue
		}
		if slot.Status != last.Status && !last.Status.CanReach(slot.Status) {
			// the stored row is authoritative, so it is still emitted
			log.Warn().
				Str("from", string(last.Status)).
				Str("to", string(slot.Status)).
				Msg("Slot status moved against the state machine")
		}
		last = slot

		select {
		case out <- slot:
		case <-ctx.Done():
			return
		}
		if slot.Status == models.SlotStatusArchived {
			return
		}
	}
}

// subscribe returns a nil subscription when the feed is unavailable; nil
// channels block forever in select, leaving only the poll ticker.
func (s *Service) subscribe(ctx context.Context) (realtime.Subscription, <-chan realtime.Event, <-chan struct{}) {
	if s.feed == nil {
		return nil, nil, nil
	}
	sub, err := s.feed.Subscribe(ctx, SlotsTable)
	if err != nil {
		logger.Debug().Err(err).Msg("Slot change feed unavailable")
		return nil, nil, nil
	}
	return sub, sub.Events(), sub.Resync()
}
