package models

import "time"

// EmailType selects the template rendered for a transactional email
type EmailType string

const (
	EmailWelcome             EmailType = "welcome"
	EmailPasswordReset       EmailType = "password_reset"
	EmailVerification        EmailType = "verification"
	EmailOpinionLiked        EmailType = "opinion_liked"
	EmailStreakAchievement   EmailType = "streak_achievement"
	EmailBadgeEarned         EmailType = "badge_earned"
	EmailInphroSyncReminder  EmailType = "inphrosync_reminder"
	EmailWeeklyDigest        EmailType = "weekly_digest"
	EmailMilestone           EmailType = "milestone"
	EmailIndustryRecognition EmailType = "industry_recognition"
	EmailBroadcast           EmailType = "broadcast"
)

var knownEmailTypes = map[EmailType]struct{}{
	EmailWelcome:             {},
	EmailPasswordReset:       {},
	EmailVerification:        {},
	EmailOpinionLiked:        {},
	EmailStreakAchievement:   {},
	EmailBadgeEarned:         {},
	EmailInphroSyncReminder:  {},
	EmailWeeklyDigest:        {},
	EmailMilestone:           {},
	EmailIndustryRecognition: {},
	EmailBroadcast:           {},
}

func (t EmailType) Valid() bool {
	_, ok := knownEmailTypes[t]
	return ok
}

// EmailRequest is the payload accepted by the email endpoint and carried on
// the notification stream.
type EmailRequest struct {
	Type EmailType              `json:"type" binding:"required" example:"welcome"`
	To   string                 `json:"to" binding:"required,email" example:"fan@example.com"`
	Name string                 `json:"name" example:"Asha"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// EmailResult carries the provider message id
type EmailResult struct {
	MessageID string    `json:"message_id" example:"4ef9a1f2-6b6c-4a57-9a8c-3e1d2b0c9f11"`
	SentAt    time.Time `json:"sent_at"`
}

// BroadcastRequest is an admin message sent to every profile with an email
type BroadcastRequest struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=5000"`
}
