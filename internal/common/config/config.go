package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres PostgresConfig

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken string `env:"BOT_TOKEN,required,notEmpty"`
		// InitDataTTL of 0 disables the expiration check
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
		AdminIDs    []int64       `env:"ADMIN_IDS" envSeparator:","`
		// NotifyWinners sends a bot message to each new Your Turn winner
		NotifyWinners bool   `env:"TELEGRAM_NOTIFY_WINNERS" envDefault:"true"`
		APIURL        string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	}

	YourTurn YourTurnConfig

	Email struct {
		APIURL            string `env:"EMAIL_API_URL" envDefault:"https://api.resend.com/emails"`
		APIKey            string `env:"EMAIL_API_KEY"`
		From              string `env:"EMAIL_FROM" envDefault:"Inphrone <hello@inphrone.com>"`
		UnsubscribeURL    string `env:"EMAIL_UNSUBSCRIBE_URL" envDefault:"https://inphrone.com/settings/notifications"`
		UnsubscribeMailto string `env:"EMAIL_UNSUBSCRIBE_MAILTO" envDefault:"unsubscribe@inphrone.com"`
		AppURL            string `env:"APP_URL" envDefault:"https://inphrone.com"`
	}

	Notifications struct {
		Stream   string `env:"NOTIFICATIONS_STREAM" envDefault:"notifications:email"`
		Group    string `env:"NOTIFICATIONS_GROUP" envDefault:"inphrone_mailers"`
		Consumer string `env:"NOTIFICATIONS_CONSUMER" envDefault:"mailer_1"`
	}
}

type PostgresConfig struct {
	Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string        `env:"POSTGRES_USER" envDefault:"inphrone"`
	Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database        string        `env:"POSTGRES_DB" envDefault:"inphrone"`
	SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// GetDSN returns a lib/pq connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

type YourTurnConfig struct {
	// Local times of the three daily slots, HH:MM
	SlotTimes []string      `env:"YOURTURN_SLOT_TIMES" envSeparator:"," envDefault:"09:00,14:00,19:00"`
	Window    time.Duration `env:"YOURTURN_WINDOW" envDefault:"20s"`
	Timezone  string        `env:"YOURTURN_TIMEZONE" envDefault:"Asia/Kolkata"`

	SchedulerInterval   time.Duration `env:"YOURTURN_SCHEDULER_INTERVAL" envDefault:"1s"`
	ArchiveAfter        time.Duration `env:"YOURTURN_ARCHIVE_AFTER" envDefault:"24h"`
	ObservePollInterval time.Duration `env:"YOURTURN_OBSERVE_POLL_INTERVAL" envDefault:"5s"`
}

// Location resolves Timezone, falling back to UTC
func (y YourTurnConfig) Location() *time.Location {
	loc, err := time.LoadLocation(y.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParsedSlotTimes converts SlotTimes into offsets from midnight.
func (y YourTurnConfig) ParsedSlotTimes() ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(y.SlotTimes))
	for _, raw := range y.SlotTimes {
		t, err := time.Parse("15:04", strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid slot time %q: %w", raw, err)
		}
		out = append(out, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	return out, nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	// .env is optional, production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.YourTurn.ParsedSlotTimes(); err != nil {
		return nil, err
	}
	if cfg.YourTurn.Window <= 0 {
		return nil, fmt.Errorf("YOURTURN_WINDOW must be positive")
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
