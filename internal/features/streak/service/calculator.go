package service

import (
	"fmt"
	"math"
	"time"

	"inphrone-backend/internal/features/streak/models"
)

const dateLayout = "2006-01-02"

// Advance applies activity on day to s. Activity on the same day or on a day
// before the last recorded one changes nothing. A one-day gap extends the
// streak, a longer gap restarts it at 1.
func Advance(s models.Streak, day string) (models.Streak, bool, error) {
	current, err := time.Parse(dateLayout, day)
	if err != nil {
		return s, false, fmt.Errorf("invalid activity date %q: %w", day, err)
	}

	if s.LastActivityDate == "" {
		s.CurrentStreak = 1
	} else {
		last, err := time.Parse(dateLayout, s.LastActivityDate)
		if err != nil {
			return s, false, fmt.Errorf("invalid stored date %q: %w", s.LastActivityDate, err)
		}
		switch gap := daysBetween(last, current); {
		case gap <= 0:
			return s, false, nil
		case gap == 1:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	}

	s.TotalActiveDays++
	s.LastActivityDate = day
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s, true, nil
}

// Calculate projects tier and milestone progress as seen on today. A streak
// whose last activity is older than yesterday is reported as broken.
func Calculate(s models.Streak, today string) models.Progress {
	p := models.Progress{Streak: s, Tier: models.TierNone}

	if s.LastActivityDate != "" {
		last, errLast := time.Parse(dateLayout, s.LastActivityDate)
		now, errNow := time.Parse(dateLayout, today)
		if errLast == nil && errNow == nil {
			gap := daysBetween(last, now)
			p.ActiveToday = gap == 0
			if gap > 1 {
				p.CurrentStreak = 0
			}
		}
	}

	current := p.CurrentStreak
	p.Tier = TierFor(current)
	if next, ok := nextTier(current); ok {
		p.NextTier = &next.Tier
		p.DaysToNextTier = next.MinDays - current
	}

	prev := 0
	for _, m := range models.Milestones {
		if m > current {
			p.NextMilestone = m
			break
		}
		prev = m
	}
	if p.NextMilestone == 0 {
		p.MilestoneProgress = 100
	} else {
		ratio := float64(current-prev) / float64(p.NextMilestone-prev) * 100
		p.MilestoneProgress = math.Round(ratio*10) / 10
	}
	return p
}

// TierFor returns the highest tier reached by a streak of days
func TierFor(days int) models.Tier {
	tier := models.TierNone
	for _, t := range models.Tiers {
		if days >= t.MinDays {
			tier = t.Tier
		}
	}
	return tier
}

func nextTier(days int) (models.TierThreshold, bool) {
	for _, t := range models.Tiers {
		if t.MinDays > days {
			return t, true
		}
	}
	return models.TierThreshold{}, false
}

// crossedMilestones lists milestones in (before, after]
func crossedMilestones(before, after int) []int {
	var out []int
	for _, m := range models.Milestones {
		if m > before && m <= after {
			out = append(out, m)
		}
	}
	return out
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
