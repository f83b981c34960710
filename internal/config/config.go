package config

import (
	"os"
	"strconv"
	"time"

	"github.com/futduel/duel-backend/internal/session"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string

	TotalRounds int
	Session     session.Config
}

func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/duel?sslmode=disable"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		TotalRounds: getEnvInt("TOTAL_ROUNDS", 10),
		Session: session.Config{
			RoundTime:      getEnvSeconds("ROUND_SECONDS", 30),
			RoundPause:     getEnvSeconds("ROUND_PAUSE_SECONDS", 3),
			DisconnectWait: getEnvSeconds("GRACE_SECONDS", 30),
			RematchWindow:  getEnvSeconds("REMATCH_TIMEOUT_SECONDS", 20),
			Linger:         getEnvSeconds("SESSION_LINGER_SECONDS", 120),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvInt(key, defaultVal)) * time.Second
}
