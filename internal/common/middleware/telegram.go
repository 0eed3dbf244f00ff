package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
)

const (
	InitDataHeader  = "init_data"
	TelegramUserKey = "user"
)

// TelegramInitData validates the signed init data sent by the Mini App and
// stores the Telegram user in the context. ttl of 0 disables the expiry check.
func TelegramInitData(botToken string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			abortWith(c, errors.NewUnauthorizedError("Telegram init data required"))
			return
		}

		if err := initdata.Validate(raw, botToken, ttl); err != nil {
			logger.Debug().Err(err).Str("request_id", getRequestID(c)).Msg("Init data validation failed")
			abortWith(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "Invalid init data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			abortWith(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Failed to parse init data"))
			return
		}
		if parsed.User.ID == 0 {
			abortWith(c, errors.NewUnauthorizedError("init data carries no user"))
			return
		}

		c.Set(TelegramUserKey, parsed.User)
		c.Set(UserIDKey, parsed.User.ID)
		c.Next()
	}
}

// abortWith stops the chain and lets HandleErrors render the error
func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
