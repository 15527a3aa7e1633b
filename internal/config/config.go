package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Redis (optional, enables cross-instance websocket fan-out)
	RedisURL string

	// Generation jobs
	WorkerCount         int
	JobQueueSize        int
	GenerationRateLimit int

	// Sessions
	SessionTTL time.Duration

	// Logging
	LogFile string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Port: getEnvOrDefault("PORT", "8080"),
		Env:  getEnvOrDefault("ENV", "development"),

		// A missing key is reported by the first generation request, not here.
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		RedisURL: os.Getenv("REDIS_URL"),

		WorkerCount:         getEnvAsIntOrDefault("WORKER_COUNT", 4),
		JobQueueSize:        getEnvAsIntOrDefault("JOB_QUEUE_SIZE", 64),
		GenerationRateLimit: getEnvAsIntOrDefault("GENERATION_RATE_LIMIT", 20),

		SessionTTL: getEnvAsDurationOrDefault("SESSION_TTL", 2*time.Hour),

		LogFile: getEnvOrDefault("LOG_FILE", "logs/app.log"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
