package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DiscordToken        string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	SubmissionChannelID string `envconfig:"SUBMISSION_CHANNEL_ID" required:"true"`

	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY" required:"true"`
	LLMTimeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`

	DBPath      string `envconfig:"DB_PATH" default:"./data/progress.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"` // when set, Postgres is used instead of SQLite

	TextCooldown time.Duration `envconfig:"TEXT_COOLDOWN" default:"120m"` // per-user gap between LLM parses
	ProofWindow  time.Duration `envconfig:"PROOF_WINDOW" default:"24h"`   // how far back proofs reconcile
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"24h"`  // external platform poll cadence

	// Optional Telegram channel for operator alerts (poll failures etc).
	TelegramOpsToken  string `envconfig:"TELEGRAM_OPS_TOKEN"`
	TelegramOpsChatID int64  `envconfig:"TELEGRAM_OPS_CHAT_ID"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
