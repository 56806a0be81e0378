package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads .env files and sets environment variables that are not already
// set. A missing file is an error callers may ignore. With no paths, ".env"
// is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for byte sizes and other 64-bit values.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "30s" or "2m". Invalid values yield fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Client holds the settings of the vidclient command line.
type Client struct {
	APIBase        string
	AuthBase       string
	HTTPTimeout    time.Duration
	UploadChunk    int
	MaxUploadBytes int64
	LogLevel       string
	LogFormat      string
	MetricsAddr    string
}

// LoadClient reads Client from the environment. Call Load first to pick up
// a .env file.
func LoadClient() Client {
	return Client{
		APIBase:        GetEnv("VIDCLIENT_API_BASE", "http://localhost:8080/api/v1"),
		AuthBase:       GetEnv("VIDCLIENT_AUTH_BASE", "http://localhost:8081"),
		HTTPTimeout:    GetEnvDuration("VIDCLIENT_HTTP_TIMEOUT", 0),
		UploadChunk:    GetEnvInt("VIDCLIENT_UPLOAD_CHUNK", 256<<10),
		MaxUploadBytes: GetEnvInt64("VIDCLIENT_MAX_UPLOAD_BYTES", 200<<20),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "text"),
		MetricsAddr:    GetEnv("METRICS_ADDR", ""),
	}
}
