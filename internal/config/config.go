package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	TurnTimeout  time.Duration
	AIThinkDelay time.Duration

	FinishedGrace     time.Duration
	InactivityTimeout time.Duration
	SweepInterval     time.Duration
}

// Load reads .env (if present) and the environment, falling back to defaults.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		TurnTimeout:       duration("TURN_TIMEOUT", 10*time.Second),
		AIThinkDelay:      duration("AI_THINK_DELAY", 1500*time.Millisecond),
		FinishedGrace:     duration("FINISHED_GRACE", 30*time.Second),
		InactivityTimeout: duration("INACTIVITY_TIMEOUT", 2*time.Minute),
		SweepInterval:     duration("SWEEP_INTERVAL", time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
