package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"inphrone-backend/internal/common/cache"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/analytics/models"
	yourturnmodels "inphrone-backend/internal/features/yourturn/models"
)

const overviewTTL = time.Minute

// CountFunc returns one aggregate counter
type CountFunc func(ctx context.Context) (int64, error)

type SlotLister interface {
	TodaySlots(ctx context.Context) ([]*yourturnmodels.Slot, error)
}

type OverviewCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func() (interface{}, error)) error
}

// Sources lists where each overview figure comes from
type Sources struct {
	Users         CountFunc
	ActiveToday   CountFunc
	Opinions      CountFunc
	SyncResponses CountFunc
	CouponClaims  CountFunc
	Slots         SlotLister
}

type Service struct {
	src   Sources
	cache OverviewCache
	now   func() time.Time
}

func NewService(src Sources, overviewCache OverviewCache) *Service {
	return &Service{src: src, cache: overviewCache, now: time.Now}
}

// Overview returns the dashboard snapshot, cached for a minute
func (s *Service) Overview(ctx context.Context) (*models.Overview, error) {
	if s.cache == nil {
		return s.build(ctx)
	}
	var out models.Overview
	load := func() (interface{}, error) { return s.build(ctx) }
	if err := s.cache.GetOrSet(ctx, cache.AnalyticsOverviewKey, &out, overviewTTL, load); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) build(ctx context.Context) (*models.Overview, error) {
	out := &models.Overview{
		SlotsToday:  make(map[string]int),
		GeneratedAt: s.now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	counters := []struct {
		name string
		fn   CountFunc
		dst  *int64
	}{
		{"users", s.src.Users, &out.Users},
		{"active today", s.src.ActiveToday, &out.ActiveToday},
		{"opinions", s.src.Opinions, &out.Opinions},
		{"sync responses", s.src.SyncResponses, &out.SyncResponses},
		{"coupon claims", s.src.CouponClaims, &out.CouponClaims},
	}
	for _, c := range counters {
		if c.fn == nil {
			continue
		}
		c := c
		g.Go(func() error {
			n, err := c.fn(gctx)
			if err != nil {
				if _, ok := errors.AsAppError(err); ok {
					return err
				}
				return errors.NewDatabaseError("count "+c.name, err)
			}
			*c.dst = n
			return nil
		})
	}
	if s.src.Slots != nil {
		g.Go(func() error {
			slots, err := s.src.Slots.TodaySlots(gctx)
			if err != nil {
				return err
			}
			for _, slot := range slots {
				out.SlotsToday[string(slot.Status)]++
			}
			out.SlotsTodayTotal = len(slots)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
