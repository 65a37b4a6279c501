package config

import (
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

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`

		EventStream   string `env:"REDIS_EVENT_STREAM" envDefault:"bot:events"`
		ConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"reward_backend_consumers"`
		ConsumerName  string `env:"REDIS_CONSUMER_NAME" envDefault:"reward_worker_1"`
	}

	Telegram struct {
		BotToken        string   `env:"BOT_TOKEN,required"`
		AnnounceChannel int64    `env:"ANNOUNCE_CHANNEL_ID"`
		OpsChannel      int64    `env:"OPS_CHANNEL_ID"`
		CommunityChat   int64    `env:"COMMUNITY_CHAT_ID"`
		AdminIDs        []string `env:"ADMIN_IDS" envSeparator:","`
	}

	Trading struct {
		BaseURL    string  `env:"TRADING_API_URL" envDefault:"http://localhost:9090"`
		MinBalance float64 `env:"TRADING_MIN_BALANCE" envDefault:"100"`
	}

	Locks struct {
		// How long Acquire waits for a contended key before failing.
		AcquireTimeout time.Duration `env:"LOCK_ACQUIRE_TIMEOUT" envDefault:"15s"`
		// A held entry older than this is forcibly discarded even if its
		// owner never released it (crash recovery).
		StaleAfter time.Duration `env:"LOCK_STALE_AFTER" envDefault:"30s"`
		// Debounce window for repeated actions by the same user.
		DebounceWindow time.Duration `env:"RATE_LIMIT_DEBOUNCE" envDefault:"2s"`
		// Rate-limit entries older than this are purged by the cleanup worker.
		EntryMaxAge     time.Duration `env:"RATE_LIMIT_MAX_AGE" envDefault:"30m"`
		CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
	}

	Registration struct {
		MaxAttempts int `env:"REGISTRATION_MAX_ATTEMPTS" envDefault:"4"`
	}

	Giveaways struct {
		DailyPrize   float64 `env:"DAILY_PRIZE" envDefault:"50"`
		WeeklyPrize  float64 `env:"WEEKLY_PRIZE" envDefault:"250"`
		MonthlyPrize float64 `env:"MONTHLY_PRIZE" envDefault:"1000"`
	}

	Storage struct {
		DataDir string `env:"DATA_DIR" envDefault:"./data"`
	}

	Cache struct {
		StatsTTL time.Duration `env:"CACHE_STATS_TTL" envDefault:"1m"`
	}

	// Reference timezone for allowed-hours checks on admin actions.
	ReferenceTimezone string `env:"REFERENCE_TIMEZONE" envDefault:"Europe/Madrid"`
}

func Load() *Config {
	// A missing .env is fine; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
