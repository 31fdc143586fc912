package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Defaults that can be overridden through the environment.
var (
	DefaultPollInterval = 5 * time.Second
	DefaultHeartbeatTTL = 15 * time.Second
)

// Server captures process-level configuration for checkdesk.
type Server struct {
	Addr            string
	Namespace       string
	RedisURL        string
	CachePath       string
	ParticipantsCSV string
	StaffCSV        string
	PollInterval    time.Duration
	HeartbeatTTL    time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is honored when present.
func FromEnv(log *slog.Logger) Server {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("skipping .env file", "error", err)
	}

	cfg := Server{
		Addr:            getEnv("CHECKDESK_ADDR", ":8080"),
		Namespace:       getEnv("CHECKDESK_NAMESPACE", "checkdesk"),
		RedisURL:        os.Getenv("CHECKDESK_REDIS_URL"),
		CachePath:       getEnv("CHECKDESK_CACHE_PATH", "checkdesk.db"),
		ParticipantsCSV: getEnv("CHECKDESK_PARTICIPANTS_CSV", "participants.csv"),
		StaffCSV:        getEnv("CHECKDESK_STAFF_CSV", "staff.csv"),
		PollInterval:    DefaultPollInterval,
		HeartbeatTTL:    DefaultHeartbeatTTL,
	}

	if raw := os.Getenv("CHECKDESK_POLL_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if raw := os.Getenv("CHECKDESK_HEARTBEAT_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.HeartbeatTTL = d
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
