// Package config loads the full environment-driven configuration envelope
// shared by the API, the gateway and the worker.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`

	// Network and auth.
	BaseURL        string  `env:"BASE_URL" envDefault:"http://localhost:8000"`
	APIKey         string  `env:"API_KEY,required"`
	APIKeyName     string  `env:"API_KEY_NAME" envDefault:"api_key"`
	APIPort        int     `env:"API_PORT" envDefault:"8000"`
	BotToken       string  `env:"TELEGRAM_BOT_TOKEN"`
	BotSecretToken string  `env:"TELEGRAM_BOT_SECRET_TOKEN"`
	ChannelIDs     []int64 `env:"TELEGRAM_CHANNEL_ID" envSeparator:","`
	DebugChannel   int64   `env:"TELEBOT_DEBUG_CHANNEL"`
	ChannelAdmins  []int64 `env:"TELEGRAM_CHANNEL_ADMIN_LIST" envSeparator:","`
	GatewayPort    int     `env:"GATEWAY_PORT" envDefault:"8081"`
	GatewayBaseURL string  `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8081"`
	HealthPort     int     `env:"HEALTH_PORT" envDefault:"8082"`

	// Mode: polling or webhook.
	BotMode    string `env:"TELEGRAM_BOT_MODE" envDefault:"polling"`
	WebhookURL string `env:"TELEGRAM_WEBHOOK_URL"`

	// Feature flags.
	DatabaseOn      bool `env:"DATABASE_ON" envDefault:"false"`
	FileExporterOn  bool `env:"FILE_EXPORTER_ON" envDefault:"false"`
	GeneralScraping bool `env:"GENERAL_SCRAPING_ON" envDefault:"false"`
	AWSStorageOn    bool `env:"AWS_STORAGE_ON" envDefault:"false"`

	// Ban lists. social_media and video are expansion tokens.
	GroupMessageBanList []string `env:"TELEGRAM_GROUP_MESSAGE_BAN_LIST" envSeparator:","`
	BotMessageBanList   []string `env:"TELEGRAM_BOT_MESSAGE_BAN_LIST" envSeparator:","`

	// Per-extractor credentials.
	TwitterCookie     string   `env:"TWITTER_COOKIE"`
	WeiboCookie       string   `env:"WEIBO_COOKIE"`
	ZhihuCookie       string   `env:"ZHIHU_COOKIE"`
	XiaohongshuCookie string   `env:"XIAOHONGSHU_COOKIE"`
	BlueskyHandle     string   `env:"BLUESKY_HANDLE"`
	BlueskyPassword   string   `env:"BLUESKY_PASSWORD"`
	RedditClientID    string   `env:"REDDIT_CLIENT_ID"`
	RedditSecret      string   `env:"REDDIT_CLIENT_SECRET"`
	TelegraphTokens   []string `env:"TELEGRAPH_TOKEN_LIST" envSeparator:","`
	TelegraphAuthor   string   `env:"TELEGRAPH_AUTHOR_NAME" envDefault:"clipflow"`

	// LLM / transcription.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	// Resource limits.
	ImageDimensionLimit  int           `env:"TELEGRAM_IMAGE_DIMENSION_LIMIT" envDefault:"1600"`
	ImageSizeLimit       int64         `env:"TELEGRAM_IMAGE_SIZE_LIMIT" envDefault:"5242880"`
	MaxFileSize          int64         `env:"TELEGRAM_FILE_SIZE_LIMIT" envDefault:"52428800"`
	HTTPRequestTimeout   time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	DownloadVideoTimeout time.Duration `env:"DOWNLOAD_VIDEO_TIMEOUT" envDefault:"600s"`
	BotConnectTimeout    time.Duration `env:"TELEBOT_CONNECT_TIMEOUT" envDefault:"15s"`
	BotReadTimeout       time.Duration `env:"TELEBOT_READ_TIMEOUT" envDefault:"30s"`
	BotWriteTimeout      time.Duration `env:"TELEBOT_WRITE_TIMEOUT" envDefault:"30s"`
	BotMaxRetry          int           `env:"TELEBOT_MAX_RETRY" envDefault:"3"`

	// Discussion-group mirror heuristics (tunable, not invariant).
	DiscussionMirrorDelay time.Duration `env:"TELEGRAM_DISCUSSION_MIRROR_DELAY" envDefault:"3s"`

	// Storage.
	PostgresDSN        string        `env:"POSTGRES_DSN"`
	WorkerPollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`
	JobTimeout         time.Duration `env:"JOB_TIMEOUT" envDefault:"600s"`
	DownloadDir        string        `env:"DOWNLOAD_DIR" envDefault:"/tmp/clipflow"`
	AWSAccessKey       string        `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey       string        `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string        `env:"AWS_REGION"`
	AWSS3Bucket        string        `env:"AWS_S3_BUCKET"`
	AWSDomainHost      string        `env:"AWS_DOMAIN_HOST"`

	// Inoreader.
	InoreaderAppID     string `env:"INOREADER_APP_ID"`
	InoreaderAppKey    string `env:"INOREADER_APP_KEY"`
	InoreaderToken     string `env:"INOREADER_TOKEN"`
	InoreaderFetchSize int    `env:"INOREADER_FETCH_SIZE" envDefault:"10"`

	// Shaper.
	Locale string `env:"MESSAGE_LOCALE" envDefault:"en"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// LLMConfigured reports whether transcription and summary features can run.
func (c *Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// SingleChannel returns the configured channel when exactly one exists.
func (c *Config) SingleChannel() (int64, bool) {
	if len(c.ChannelIDs) == 1 {
		return c.ChannelIDs[0], true
	}

	return 0, false
}

// IsChannelAdmin reports whether the user may use the Send to Channel flow.
func (c *Config) IsChannelAdmin(userID int64) bool {
	for _, id := range c.ChannelAdmins {
		if id == userID {
			return true
		}
	}

	return false
}
