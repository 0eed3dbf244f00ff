package middleware

import (
	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/config"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/features/user/models"
)

// RequireAdmin admits users listed in ADMIN_IDS and profiles with the admin role
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			abortWith(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}

		if IsAdmin(c, cfg) {
			c.Next()
			return
		}

		abortWith(c, errors.NewForbiddenError("admin access required").WithUserID(userID))
	}
}

func IsAdmin(c *gin.Context, cfg *config.Config) bool {
	userID, ok := CurrentUserID(c)
	if !ok {
		return false
	}
	if cfg.IsAdmin(userID) {
		return true
	}
	profile, ok := CurrentProfile(c)
	return ok && profile.Role == models.RoleAdmin
}
