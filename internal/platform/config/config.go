package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. All values are read once at
// startup and passed into components as immutable configuration.
type Config struct {
	Addr string

	// Cache backend selection: postgres when DatabaseURL is set, otherwise
	// redis when RedisURL is set, otherwise in-memory.
	DatabaseURL string
	RedisURL    string

	// Optional scrape-outcome event stream.
	KafkaBrokers []string
	KafkaTopic   string

	UpstreamBaseURL string

	CacheTTL      time.Duration
	RequestDelay  time.Duration
	ScrapeTimeout time.Duration
	ShutdownGrace time.Duration

	Redis RedisConfig
}

// RedisConfig holds tuning knobs for the redis connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("ORGLENS_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaTopic:      getenv("KAFKA_TOPIC", "orglens.scrape-outcomes"),
		UpstreamBaseURL: getenv("UPSTREAM_BASE_URL", "https://www.rusprofile.ru"),
		CacheTTL:        time.Duration(getenvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		RequestDelay:    getenvSeconds("REQUEST_DELAY", 2.5),
		ScrapeTimeout:   getenvSeconds("SCRAPE_TIMEOUT", 15),
		ShutdownGrace:   getenvSeconds("SHUTDOWN_GRACE", 10),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	cfg.Redis = RedisConfig{
		URL:          cfg.RedisURL,
		PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getenvSeconds("REDIS_DIAL_TIMEOUT", 5),
		ReadTimeout:  getenvSeconds("REDIS_READ_TIMEOUT", 3),
		WriteTimeout: getenvSeconds("REDIS_WRITE_TIMEOUT", 3),
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getenvSeconds parses a float number of seconds, matching the upstream
// REQUEST_DELAY convention.
func getenvSeconds(key string, def float64) time.Duration {
	seconds := def
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			seconds = f
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
