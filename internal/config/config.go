package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds every knob the client core reads. Values come from the
// environment (optionally via a .env file) with an optional YAML overlay
// on top for desktop installs that ship a config file.
type Config struct {
	// Backend
	BackendBaseURL string        `yaml:"backend_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Deep research
	SettleDelay       time.Duration `yaml:"settle_delay"`        // wait after stream end before the authoritative reload
	StreamReadTimeout time.Duration `yaml:"stream_read_timeout"` // hard ceiling on a single research stream

	// Catch-up reveal
	TickInterval     time.Duration `yaml:"tick_interval"`
	CatchUpCharsTick int           `yaml:"catchup_chars_per_tick"`
	SteadyCharsTick  int           `yaml:"steady_chars_per_tick"`

	// Local cache
	CachePath string `yaml:"cache_path"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	// Mock backend (development only)
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// Load reads configuration from the environment, loading a .env file first
// if one exists.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		BackendBaseURL: getEnvOrDefault("LUCENT_BACKEND_URL", "http://localhost:8080"),
		RequestTimeout: getEnvAsDuration("LUCENT_REQUEST_TIMEOUT", 30*time.Second),

		SettleDelay:       getEnvAsDuration("LUCENT_SETTLE_DELAY", 300*time.Millisecond),
		StreamReadTimeout: getEnvAsDuration("LUCENT_STREAM_READ_TIMEOUT", 30*time.Minute),

		TickInterval:     getEnvAsDuration("LUCENT_TICK_INTERVAL", 16*time.Millisecond),
		CatchUpCharsTick: getEnvAsInt("LUCENT_CATCHUP_CHARS_PER_TICK", 120),
		SteadyCharsTick:  getEnvAsInt("LUCENT_STEADY_CHARS_PER_TICK", 3),

		CachePath: getEnvOrDefault("LUCENT_CACHE_PATH", defaultCachePath()),

		LogLevel:  getEnvOrDefault("LUCENT_LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LUCENT_LOG_FORMAT", "text"),
		LogFile:   getEnvOrDefault("LUCENT_LOG_FILE", ""),

		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

// LoadFile applies a YAML overlay on top of an existing config.
// Zero-value fields in the file leave the existing values untouched only
// if the file omits them entirely, so config files should set the keys
// they mean to change.
func LoadFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "lucent-cache.db"
	}
	return dir + "/lucent/cache.db"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
