package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Email    EmailConfig
	Push     PushConfig
	Photo    PhotoConfig
	Stripe   StripeConfig
	Notify   NotifyConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port    string
	BaseURL string
	// CronSecret authenticates external invocations of the scheduler
	// entry points.
	CronSecret string
}

type DatabaseConfig struct {
	Path string
}

type EmailConfig struct {
	PostmarkToken string
	FromEmail     string
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type PhotoConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	PriceID        string
	AnnualPriceID  string
	SuccessURL     string
	CancelURL      string
}

type NotifyConfig struct {
	LookaheadWindow   time.Duration
	ReminderRateLimit time.Duration
	Timezone          string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() *Config {
	baseURL := getEnv("HEARTH_BASE_URL", "http://localhost:8080")
	return &Config{
		Server: ServerConfig{
			Port:       getEnv("HEARTH_PORT", "8080"),
			BaseURL:    baseURL,
			CronSecret: os.Getenv("HEARTH_CRON_SECRET"),
		},
		Database: DatabaseConfig{
			Path: getEnv("HEARTH_DB_PATH", "hearth.db"),
		},
		Email: EmailConfig{
			PostmarkToken: os.Getenv("HEARTH_POSTMARK_TOKEN"),
			FromEmail:     getEnv("HEARTH_FROM_EMAIL", "noreply@hearth.family"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  os.Getenv("HEARTH_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("HEARTH_VAPID_PRIVATE_KEY"),
			Subscriber:      getEnv("HEARTH_VAPID_SUBSCRIBER", "mailto:noreply@hearth.family"),
		},
		Photo: PhotoConfig{
			Endpoint:  os.Getenv("HEARTH_S3_ENDPOINT"),
			Bucket:    os.Getenv("HEARTH_S3_BUCKET"),
			Region:    getEnv("HEARTH_S3_REGION", "auto"),
			AccessKey: os.Getenv("HEARTH_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HEARTH_S3_SECRET_KEY"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("HEARTH_STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("HEARTH_STRIPE_WEBHOOK_SECRET"),
			PriceID:       os.Getenv("HEARTH_STRIPE_PRICE_ID"),
			AnnualPriceID: os.Getenv("HEARTH_STRIPE_ANNUAL_PRICE_ID"),
			SuccessURL:    getEnv("HEARTH_STRIPE_SUCCESS_URL", baseURL+"/billing/success"),
			CancelURL:     getEnv("HEARTH_STRIPE_CANCEL_URL", baseURL+"/billing"),
		},
		Notify: NotifyConfig{
			LookaheadWindow:   getEnvAsDuration("HEARTH_REMINDER_WINDOW", 24*time.Hour),
			ReminderRateLimit: getEnvAsDuration("HEARTH_REMINDER_RATE_LIMIT", 12*time.Hour),
			Timezone:          getEnv("HEARTH_TIMEZONE", "Local"),
		},
		Log: LogConfig{
			Level:  getEnv("HEARTH_LOG_LEVEL", "info"),
			Format: getEnv("HEARTH_LOG_FORMAT", "text"),
		},
	}
}

// Location resolves the configured timezone, falling back to the system
// location on error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
