package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type RapidAPI struct {
	Key  string
	Host string
}

// Automation holds the tuning knobs of the publish pipeline.
type Automation struct {
	PollInterval     time.Duration
	PollAttempts     int
	FetchRetries     int
	FetchRetryDelay  time.Duration
	MaxVideoDuration int
}

type Config struct {
	PostgresURI       string
	RedisURI          string
	Port              string
	SecretKey         string
	CookieName        string
	CronSecret        string
	InstagramGraphURL string
	TriggerURL        string
	TriggerSchedule   string
	R2                R2
	RapidAPI          RapidAPI
	Automation        Automation
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		RedisURI:          getEnv("REDIS_URI", ""),
		Port:              getEnv("PORT", "3000"),
		SecretKey:         getEnv("SECRET_KEY", ""),
		CookieName:        getEnv("COOKIE_NAME", ""),
		CronSecret:        getEnv("CRON_SECRET", ""),
		InstagramGraphURL: getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		TriggerURL:        getEnv("TRIGGER_URL", "http://localhost:3000/api/cron/process"),
		TriggerSchedule:   getEnv("TRIGGER_SCHEDULE", "@every 1m"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		RapidAPI: RapidAPI{
			Key:  getEnv("RAPIDAPI_KEY", ""),
			Host: getEnv("RAPIDAPI_HOST", "tiktok-api23.p.rapidapi.com"),
		},
		Automation: Automation{
			PollInterval:     getEnvDuration("POLL_INTERVAL", 4*time.Second),
			PollAttempts:     getEnvInt("POLL_ATTEMPTS", 15),
			FetchRetries:     getEnvInt("FETCH_RETRIES", 2),
			FetchRetryDelay:  getEnvDuration("FETCH_RETRY_DELAY", 1500*time.Millisecond),
			MaxVideoDuration: getEnvInt("MAX_VIDEO_DURATION", 180),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}
