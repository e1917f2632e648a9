package config

import (
	"os"
	"time"
)

// Config captures everything the engine and the simulator read from the
// environment so main stays lean.
type Config struct {
	// Engine side.
	APIBaseURL    string
	FeedURL       string
	GuestCartPath string
	RedisURL      string
	HTTPTimeout   time.Duration

	// Simulator side.
	ListenAddr string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	return Config{
		APIBaseURL:    getEnv("TROLLEY_API_BASE_URL", "http://localhost:8080/api"),
		FeedURL:       getEnv("TROLLEY_FEED_URL", "ws://localhost:8080/ws/inventory"),
		GuestCartPath: getEnv("TROLLEY_GUEST_CART_PATH", defaultGuestCartPath()),
		RedisURL:      getEnv("TROLLEY_REDIS_URL", ""),
		HTTPTimeout:   getDuration("TROLLEY_HTTP_TIMEOUT", 10*time.Second),
		ListenAddr:    getEnv("TROLLEY_LISTEN_ADDR", ":8080"),
	}
}

func defaultGuestCartPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return dir + "/trolley/guest-cart.json"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
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
