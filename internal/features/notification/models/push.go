package models

import "time"

type PushSubscription struct {
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribeRequest mirrors the browser PushSubscription JSON
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url,max=2048" example:"https://fcm.googleapis.com/fcm/send/abc"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required,max=256"`
		Auth   string `json:"auth" binding:"required,max=256"`
	} `json:"keys"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url,max=2048"`
}

type DismissMode string

const (
	// DismissPermanent never prompts again
	DismissPermanent DismissMode = "permanent"
	// DismissLater snoozes the prompt for the cooldown period
	DismissLater DismissMode = "later"
)

type DismissRequest struct {
	Mode DismissMode `json:"mode" binding:"required,oneof=permanent later" example:"later"`
}

type PromptState struct {
	ShouldPrompt bool   `json:"should_prompt"`
	Reason       string `json:"reason,omitempty" example:"snoozed"`
}

type BroadcastResult struct {
	Enqueued int `json:"enqueued"`
	Failed   int `json:"failed"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Subscription not found"`
}
