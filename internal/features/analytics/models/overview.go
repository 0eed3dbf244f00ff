package models

import "time"

// Overview is the admin dashboard snapshot
type Overview struct {
	Users           int64          `json:"users" example:"1520"`
	ActiveToday     int64          `json:"active_today" example:"311"`
	Opinions        int64          `json:"opinions" example:"4210"`
	SyncResponses   int64          `json:"sync_responses" example:"9830"`
	CouponClaims    int64          `json:"coupon_claims" example:"87"`
	SlotsToday      map[string]int `json:"slots_today"`
	SlotsTodayTotal int            `json:"slots_today_total" example:"3"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Internal server error"`
}
