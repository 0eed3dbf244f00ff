package models

import "time"

type SlotStatus string

const (
	SlotStatusScheduled SlotStatus = "scheduled"
	SlotStatusOpen      SlotStatus = "open"
	SlotStatusWon       SlotStatus = "won"
	SlotStatusExpired   SlotStatus = "expired"
	SlotStatusArchived  SlotStatus = "archived"
)

var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotStatusScheduled: {SlotStatusOpen},
	SlotStatusOpen:      {SlotStatusWon, SlotStatusExpired},
	SlotStatusWon:       {SlotStatusArchived},
	SlotStatusExpired:   {SlotStatusArchived},
}

// CanTransitionTo reports whether next directly follows s. No state is re-entered.
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	for _, allowed := range slotTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanReach reports whether next lies ahead of s along the transition table.
// A claim may open and win a slot in one step, so observers see gaps.
func (s SlotStatus) CanReach(next SlotStatus) bool {
	if s.CanTransitionTo(next) {
		return true
	}
	for _, step := range slotTransitions[s] {
		if step.CanReach(next) {
			return true
		}
	}
	return false
}

// Slot is one of the fixed daily competition windows
type Slot struct {
	ID           string     `json:"id" example:"b3c1f0a2-1d2e-4f5a-9b8c-7d6e5f4a3b2c"`
	Date         string     `json:"date" example:"2025-03-15"`
	SlotNumber   int        `json:"slot_number" example:"1"`
	OpensAt      time.Time  `json:"opens_at"`
	EndsAt       time.Time  `json:"ends_at"`
	Status       SlotStatus `json:"status" example:"open" enums:"scheduled,open,won,expired,archived"`
	AttemptCount int        `json:"attempt_count" example:"42"`
	WinnerID     *int64     `json:"winner_id,omitempty" example:"123456789"`
	WonAt        *time.Time `json:"won_at,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsWinner reports whether userID holds the slot
func (s *Slot) IsWinner(userID int64) bool {
	return s.WinnerID != nil && *s.WinnerID == userID
}

// SameState compares the fields observers care about
func (s *Slot) SameState(other *Slot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Status != other.Status || s.AttemptCount != other.AttemptCount {
		return false
	}
	if (s.WinnerID == nil) != (other.WinnerID == nil) {
		return false
	}
	return s.WinnerID == nil || *s.WinnerID == *other.WinnerID
}

// Attempt is one user's claim on a slot
type Attempt struct {
	ID          string    `json:"id"`
	SlotID      string    `json:"slot_id"`
	UserID      int64     `json:"user_id"`
	AttemptedAt time.Time `json:"attempted_at"`
	IsWinner    bool      `json:"is_winner"`
}

type ClaimOutcome string

const (
	ClaimWon          ClaimOutcome = "won"
	ClaimAlreadyTaken ClaimOutcome = "already_taken"
	ClaimExpired      ClaimOutcome = "expired"
)

// ClaimResult is returned for every accepted claim call, won or lost
type ClaimResult struct {
	Result ClaimOutcome `json:"result" example:"won" enums:"won,already_taken,expired"`
	Slot   *Slot        `json:"slot"`
	// NewlyWon is set only for the call whose update stamped the winner
	NewlyWon bool `json:"-"`
	// Opened is set when this call moved a due slot out of scheduled
	Opened bool `json:"-"`
}

// SlotDetails bundles a slot with the question its winner published
type SlotDetails struct {
	Slot     *Slot     `json:"slot"`
	Question *Question `json:"question,omitempty"`
}

// TickReport counts the transitions applied by one scheduler pass
type TickReport struct {
	Opened   int `json:"opened"`
	Expired  int `json:"expired"`
	Archived int `json:"archived"`
}
