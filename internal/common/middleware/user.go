package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/user/models"
)

const ProfileKey = "profile"

// ProfileProvisioner mirrors the identity provider user into a profile
type ProfileProvisioner interface {
	GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error)
}

// AutoCreateUser provisions the profile of the authenticated user and
// rejects banned accounts.
func AutoCreateUser(provisioner ProfileProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(TelegramUserKey)
		if !exists {
			c.Next()
			return
		}

		tgUser, ok := value.(initdata.User)
		if !ok {
			abortWith(c, errors.New(errors.ErrCodeBadRequest, "Invalid user data format"))
			return
		}

		profile, err := provisioner.GetOrCreate(c.Request.Context(), tgUser.ID, tgUser.Username, tgUser.FirstName, tgUser.LastName)
		if err != nil {
			abortWith(c, err)
			return
		}
		if profile.Status == models.StatusBanned {
			abortWith(c, errors.New(errors.ErrCodeUserBanned, "Your account has been banned").WithUserID(profile.ID))
			return
		}

		c.Set(ProfileKey, profile)
		c.Next()
	}
}

// RequireOnboarded rejects profiles that have not finished the setup wizard
func RequireOnboarded() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, ok := CurrentProfile(c)
		if !ok {
			abortWith(c, errors.NewUnauthorizedError("profile required"))
			return
		}
		if !profile.OnboardingCompleted {
			abortWith(c, errors.New(errors.ErrCodeOnboardingIncomplete, "Complete onboarding first").
				WithUserID(profile.ID))
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated Telegram user id
func CurrentUserID(c *gin.Context) (int64, bool) {
	id := getUserID(c)
	return id, id != 0
}

func CurrentProfile(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ProfileKey)
	if !exists {
		return nil, false
	}
	profile, ok := value.(*models.User)
	return profile, ok && profile != nil
}
