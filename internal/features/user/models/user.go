package models

import "time"

// Role is the audience segment a profile chose during onboarding
type Role string

const (
	RoleAudience  Role = "audience"
	RoleCreator   Role = "creator"
	RoleStudio    Role = "studio"
	RoleOTT       Role = "ott"
	RoleTV        Role = "tv"
	RoleGaming    Role = "gaming"
	RoleMusic     Role = "music"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// IsIndustry reports whether the role belongs to an industry professional
func (r Role) IsIndustry() bool {
	switch r {
	case RoleCreator, RoleStudio, RoleOTT, RoleTV, RoleGaming, RoleMusic, RoleDeveloper:
		return true
	}
	return false
}

const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// User is a profile mirrored from the identity provider.
// ID is the Telegram user id.
type User struct {
	ID                  int64     `json:"id"`
	Username            string    `json:"username"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Email               string    `json:"email,omitempty"`
	Role                Role      `json:"role"`
	Status              string    `json:"status"`
	Country             string    `json:"country,omitempty"`
	AgeGroup            string    `json:"age_group,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UserResponse is the public view of a profile
// @Description Public profile information
type UserResponse struct {
	ID                  int64     `json:"id" example:"123456789"`
	Username            string    `json:"username" example:"johndoe"`
	FirstName           string    `json:"first_name" example:"John"`
	LastName            string    `json:"last_name" example:"Doe"`
	Role                Role      `json:"role" example:"audience"`
	Status              string    `json:"status" example:"active" enums:"active,banned"`
	OnboardingCompleted bool      `json:"onboarding_completed" example:"true"`
	CreatedAt           time.Time `json:"created_at" example:"2024-03-15T14:30:00Z"`
}

// OnboardingRequest completes the setup wizard
type OnboardingRequest struct {
	Role     Role   `json:"role" binding:"required,oneof=audience creator studio ott tv gaming music developer" example:"audience"`
	Email    string `json:"email" binding:"omitempty,email" example:"fan@example.com"`
	Country  string `json:"country" binding:"omitempty,max=64" example:"IN"`
	AgeGroup string `json:"age_group" binding:"omitempty,oneof=13-17 18-24 25-34 35-44 45+" example:"18-24"`
}
