package models

// ErrorResponse documents the error envelope for swagger
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Error message"`
}

// StatusUpdate represents a status update request
type StatusUpdate struct {
	Status string `json:"status" binding:"required,oneof=active banned" example:"active" enums:"active,banned"`
}
