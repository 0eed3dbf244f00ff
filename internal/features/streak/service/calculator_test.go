package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inphrone-backend/internal/features/streak/models"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name        string
		start       models.Streak
		day         string
		wantCurrent int
		wantLongest int
		wantTotal   int
		wantChanged bool
	}{
		{
			name:        "first activity",
			start:       models.Streak{},
			day:         "2025-03-15",
			wantCurrent: 1, wantLongest: 1, wantTotal: 1, wantChanged: true,
		},
		{
			name:        "same day is a no-op",
			start:       models.Streak{CurrentStreak: 4, LongestStreak: 6, TotalActiveDays: 9, LastActivityDate: "2025-03-15"},
			day:         "2025-03-15",
			wantCurrent: 4, wantLongest: 6, wantTotal: 9, wantChanged: false,
		},
		{
			name:        "consecutive day extends",
			start:       models.Streak{CurrentStreak: 6, LongestStreak: 6, TotalActiveDays: 9, LastActivityDate: "2025-03-14"},
			day:         "2025-03-15",
			wantCurrent: 7, wantLongest: 7, wantTotal: 10, wantChanged: true,
		},
		{
			name:        "gap resets but keeps longest",
			start:       models.Streak{CurrentStreak: 12, LongestStreak: 12, TotalActiveDays: 20, LastActivityDate: "2025-03-10"},
			day:         "2025-03-15",
			wantCurrent: 1, wantLongest: 12, wantTotal: 21, wantChanged: true,
		},
		{
			name:        "older day is ignored",
			start:       models.Streak{CurrentStreak: 2, LongestStreak: 2, TotalActiveDays: 2, LastActivityDate: "2025-03-15"},
			day:         "2025-03-13",
			wantCurrent: 2, wantLongest: 2, wantTotal: 2, wantChanged: false,
		},
		{
			name:        "month boundary",
			start:       models.Streak{CurrentStreak: 1, LongestStreak: 1, TotalActiveDays: 1, LastActivityDate: "2025-02-28"},
			day:         "2025-03-01",
			wantCurrent: 2, wantLongest: 2, wantTotal: 2, wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := Advance(tt.start, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantCurrent, got.CurrentStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			assert.Equal(t, tt.wantTotal, got.TotalActiveDays)
			if changed {
				assert.Equal(t, tt.day, got.LastActivityDate)
			}
		})
	}
}

func TestAdvance_InvalidDate(t *testing.T) {
	_, _, err := Advance(models.Streak{}, "15-03-2025")
	assert.Error(t, err)
}

func TestCalculate(t *testing.T) {
	t.Run("NoActivity", func(t *testing.T) {
		p := Calculate(models.Streak{}, "2025-03-15")
		assert.Equal(t, models.TierNone, p.Tier)
		require.NotNil(t, p.NextTier)
		assert.Equal(t, models.TierBronze, *p.NextTier)
		assert.Equal(t, 3, p.DaysToNextTier)
		assert.Equal(t, 7, p.NextMilestone)
		assert.Equal(t, 0.0, p.MilestoneProgress)
		assert.False(t, p.ActiveToday)
	})

	t.Run("MidwayToSecondMilestone", func(t *testing.T) {
		p := Calculate(models.Streak{CurrentStreak: 10, LongestStreak: 10, LastActivityDate: "2025-03-15"}, "2025-03-15")
		assert.Equal(t, models.TierSilver, p.Tier)
		assert.Equal(t, models.TierGold, *p.NextTier)
		assert.Equal(t, 20, p.DaysToNextTier)
		assert.Equal(t, 14, p.NextMilestone)
		assert.Equal(t, 42.9, p.MilestoneProgress)
		assert.True(t, p.ActiveToday)
	})

	t.Run("YesterdayStillCounts", func(t *testing.T) {
		p := Calculate(models.Streak{CurrentStreak: 3, LastActivityDate: "2025-03-14"}, "2025-03-15")
		assert.Equal(t, 3, p.CurrentStreak)
		assert.Equal(t, models.TierBronze, p.Tier)
		assert.False(t, p.ActiveToday)
	})

	t.Run("BrokenStreak", func(t *testing.T) {
		p := Calculate(models.Streak{CurrentStreak: 40, LongestStreak: 40, LastActivityDate: "2025-03-10"}, "2025-03-15")
		assert.Equal(t, 0, p.CurrentStreak)
		assert.Equal(t, 40, p.LongestStreak)
		assert.Equal(t, models.TierNone, p.Tier)
	})

	t.Run("BeyondLastMilestone", func(t *testing.T) {
		p := Calculate(models.Streak{CurrentStreak: 400, LastActivityDate: "2025-03-15"}, "2025-03-15")
		assert.Equal(t, models.TierDiamond, p.Tier)
		assert.Nil(t, p.NextTier)
		assert.Equal(t, 0, p.NextMilestone)
		assert.Equal(t, 100.0, p.MilestoneProgress)
	})
}

func TestCrossedMilestones(t *testing.T) {
	assert.Equal(t, []int{7}, crossedMilestones(6, 7))
	assert.Nil(t, crossedMilestones(7, 8))
	assert.Nil(t, crossedMilestones(12, 1))
	assert.Equal(t, []int{7, 14}, crossedMilestones(0, 14))
}
