package models

import "time"

// Streak holds the daily activity counters of a profile. LastActivityDate is
// a calendar date in the app timezone, formatted YYYY-MM-DD.
type Streak struct {
	UserID           int64     `json:"user_id"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	TotalActiveDays  int       `json:"total_active_days"`
	LastActivityDate string    `json:"last_activity_date,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Tier string

const (
	TierNone     Tier = "none"
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// TierThreshold is the streak length at which a tier starts
type TierThreshold struct {
	Tier    Tier
	MinDays int
}

// Tiers is ordered by MinDays
var Tiers = []TierThreshold{
	{TierNone, 0},
	{TierBronze, 3},
	{TierSilver, 7},
	{TierGold, 30},
	{TierPlatinum, 100},
	{TierDiamond, 365},
}

// Milestones are the streak lengths that award a badge
var Milestones = []int{7, 14, 30, 60, 100, 365}

// Progress is the read projection shown on the profile page
type Progress struct {
	Streak
	Tier              Tier    `json:"tier"`
	NextTier          *Tier   `json:"next_tier,omitempty"`
	DaysToNextTier    int     `json:"days_to_next_tier"`
	NextMilestone     int     `json:"next_milestone,omitempty"`
	MilestoneProgress float64 `json:"milestone_progress"`
	// ActiveToday is false once the streak would break tomorrow without activity
	ActiveToday bool `json:"active_today"`
}

type Badge struct {
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	AwardedAt time.Time `json:"awarded_at"`
}

// ActivityResult describes what RecordActivity changed
type ActivityResult struct {
	Streak      *Streak  `json:"streak"`
	Changed     bool     `json:"changed"`
	NewBadges   []*Badge `json:"new_badges,omitempty"`
	NewLongest  bool     `json:"new_longest"`
	ReachedTier *Tier    `json:"reached_tier,omitempty"`
}
