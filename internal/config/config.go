package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/croptrace/soil-analysis/internal/soil"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	NASAPowerAPIKey   string

	// Per-source fetch tuning.
	SourceTimeout    time.Duration
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration

	// MonitorInterval controls how often configured sites are re-analyzed.
	MonitorInterval time.Duration

	// Sites to re-analyze periodically.
	Sites []soil.Coordinate

	// Result store.
	StoreDriver     string // memory | sqlite | postgres
	StoreDSN        string
	StoreMaxHistory int           // memory driver: max results per coordinate (0 = unlimited)
	StoreMaxAge     time.Duration // memory driver: max age of results (0 = unlimited)

	Port string

	LogLevel  string
	LogFormat string // json | console
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; variables may be set directly.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.NASAPowerAPIKey = os.Getenv("NASA_POWER_API_KEY")

	timeoutStr := getenvDefault("SOURCE_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, eris.Wrap(err, "invalid SOURCE_TIMEOUT")
	}
	cfg.SourceTimeout = timeout

	cfg.FetchMaxAttempts = getenvInt("FETCH_MAX_ATTEMPTS", 3)

	delayStr := getenvDefault("FETCH_BASE_DELAY", "2s")
	delay, err := time.ParseDuration(delayStr)
	if err != nil {
		return nil, eris.Wrap(err, "invalid FETCH_BASE_DELAY")
	}
	cfg.FetchBaseDelay = delay

	// Monitor interval: default hourly.
	intervalStr := getenvDefault("MONITOR_INTERVAL", "60m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, eris.Wrap(err, "invalid MONITOR_INTERVAL")
	}
	cfg.MonitorInterval = interval

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", "memory")
	cfg.StoreDSN = getenvDefault("STORE_DSN", "soil-analysis.db")

	// Memory store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // four days at hourly runs

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "96h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, eris.Wrap(err, "invalid STORE_MAX_AGE")
	}
	cfg.StoreMaxAge = maxAge

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	sites, err := loadSites()
	if err != nil {
		return nil, err
	}
	cfg.Sites = sites

	return cfg, nil
}

// InitLogger builds the process-wide zap logger and installs it as the
// global. Call once at startup, before anything logs.
func InitLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level %q", level)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// loadSites parses MONITOR_SITES, a semicolon-separated list of lat,lon pairs,
// e.g. "12.97,77.59;20.59,78.96".
func loadSites() ([]soil.Coordinate, error) {
	raw := strings.TrimSpace(os.Getenv("MONITOR_SITES"))
	if raw == "" {
		return nil, nil
	}

	var sites []soil.Coordinate
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, eris.Errorf("invalid MONITOR_SITES entry %q, want lat,lon", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid latitude in MONITOR_SITES entry %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid longitude in MONITOR_SITES entry %q", pair)
		}

		c := soil.Coordinate{Latitude: lat, Longitude: lon}
		if err := c.Validate(); err != nil {
			return nil, eris.Wrapf(err, "invalid MONITOR_SITES entry %q", pair)
		}
		sites = append(sites, c)
	}

	return sites, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
